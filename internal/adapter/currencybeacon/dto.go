package currencybeacon

import "github.com/shopspring/decimal"

type historicalResponse struct {
	Response *struct {
		Date  string                     `json:"date"`
		Base  string                     `json:"base"`
		Rates map[string]decimal.Decimal `json:"rates"`
	} `json:"response"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (r historicalResponse) rates() map[string]decimal.Decimal {
	if r.Response != nil && r.Response.Rates != nil {
		return r.Response.Rates
	}
	return r.Rates
}

type timeseriesResponse struct {
	Response map[string]map[string]decimal.Decimal `json:"response"`
}

type currenciesResponse struct {
	Response []struct {
		ShortCode string `json:"short_code"`
		Name      string `json:"name"`
		Symbol    string `json:"symbol"`
	} `json:"response"`
}
