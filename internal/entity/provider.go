package entity

import "time"

// Provider describes a configured external rate source. Lower Priority is tried first.
type Provider struct {
	ID          int64             `db:"id" json:"id,omitempty"`
	Name        string            `db:"provider_name" json:"provider_name"`
	URL         string            `db:"provider_url" json:"provider_url"`
	IsActive    bool              `db:"is_active" json:"is_active"`
	Priority    int               `db:"priority" json:"priority"`
	Credentials map[string]string `db:"credentials" json:"-"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at,omitempty"`
}

// APIKey returns the "api-key" credential, or an empty string.
func (p Provider) APIKey() string {
	if p.Credentials == nil {
		return ""
	}
	return p.Credentials["api-key"]
}
