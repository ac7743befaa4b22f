package usecase

import "github.com/shopspring/decimal"

type ConvertRequest struct {
	SourceCurrency      string          `json:"source_currency" binding:"required,currency"`
	ExchangedCurrencies []string        `json:"exchanged_currencies" binding:"required,min=1,dive,currency"`
	ValuationDate       string          `json:"valuation_date" binding:"required"`
	Provider            string          `json:"provider"`
	Amount              decimal.Decimal `json:"amount"`
}

type TimeseriesRequest struct {
	BaseCurrency string   `json:"base_currency" binding:"required,currency"`
	ToCurrencies []string `json:"to_currencies" binding:"required,min=1,dive,currency"`
	StartDate    string   `json:"start_date" binding:"required"`
	EndDate      string   `json:"end_date" binding:"required"`
	Provider     string   `json:"provider"`
}

// ConvertResponse maps each target code to a ConvertedRate or a PairError.
type ConvertResponse map[string]any

// TimeseriesResponse maps each target code to a SeriesRates or a PairError.
type TimeseriesResponse map[string]any

type ConvertedRate struct {
	Rate            float64 `json:"rate"`
	ConvertedAmount float64 `json:"converted_amount"`
	FetchedFrom     string  `json:"fetched_from"`
}

type SeriesRates struct {
	Rates []RatePoint `json:"rates"`
}

type RatePoint struct {
	ValuationDate string `json:"valuation_date"`
	RateValue     string `json:"rate_value"`
}

type PairError struct {
	Error string `json:"error"`
}

type CurrencyResponse struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
