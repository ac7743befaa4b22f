package entity

import "time"

type Currency struct {
	ID                 int64      `db:"id" json:"id,omitempty"`
	Code               string     `db:"code" json:"code"`
	Name               string     `db:"name" json:"name,omitempty"`
	Symbol             string     `db:"symbol" json:"symbol,omitempty"`
	LoadHistoricalData bool       `db:"load_historical_data" json:"load_historical_data"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at,omitempty"`
	DeletedAt          *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}
