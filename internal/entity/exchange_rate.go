package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StoragePrecision is the number of fractional digits kept in exchange_rates.rate_value.
	StoragePrecision int32 = 6
	// DisplayPrecision is used by providers when they report rates or converted amounts to humans.
	DisplayPrecision int32 = 2
	// ConversionPrecision is applied to rate * amount in conversion responses.
	ConversionPrecision int32 = 3
)

// DateLayout is the ISO 8601 calendar date used in requests, responses and provider URLs.
const DateLayout = "2006-01-02"

// ExchangeRate is the value of one unit of SourceCode expressed in TargetCode on ValuationDate.
type ExchangeRate struct {
	ID            int64           `db:"id" json:"id,omitempty"`
	SourceCode    string          `db:"source_code" json:"source_currency"`
	TargetCode    string          `db:"target_code" json:"exchanged_currency"`
	ValuationDate time.Time       `db:"valuation_date" json:"valuation_date"`
	RateValue     decimal.Decimal `db:"rate_value" json:"rate_value"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at,omitempty"`
}

// NewExchangeRate normalizes the date to a UTC day and the value to storage precision.
func NewExchangeRate(source, target string, date time.Time, value decimal.Decimal) ExchangeRate {
	return ExchangeRate{
		SourceCode:    source,
		TargetCode:    target,
		ValuationDate: Day(date),
		RateValue:     value.Round(StoragePrecision),
	}
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days lists every calendar day in [start, end]. It returns nil when start is after end.
func Days(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
