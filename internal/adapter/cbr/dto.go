package cbr

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type ValCurs struct {
	XMLName xml.Name `xml:"ValCurs"`
	Date    string   `xml:"Date,attr"`
	Name    string   `xml:"name,attr"`
	Valutes []Valute `xml:"Valute"`
}

type Valute struct {
	ID        string `xml:"ID,attr"`
	NumCode   string `xml:"NumCode"`
	CharCode  string `xml:"CharCode"`
	Nominal   int    `xml:"Nominal"`
	Name      string `xml:"Name"`
	Value     string `xml:"Value"`
	VunitRate string `xml:"VunitRate"`
}

// GetValue parses Value, which uses a decimal comma.
func (v Valute) GetValue() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(strings.TrimSpace(v.Value), ",", ".", -1))
}

// UnitRate is the price of one unit of the currency in roubles.
func (v Valute) UnitRate() (decimal.Decimal, error) {
	value, err := v.GetValue()
	if err != nil {
		return decimal.Zero, err
	}
	if v.Nominal <= 0 {
		return decimal.Zero, fmt.Errorf("invalid nominal %d for %s", v.Nominal, v.CharCode)
	}
	return value.Div(decimal.NewFromInt(int64(v.Nominal))), nil
}

// RubRates maps every quoted code, RUB included, to its rouble price per unit.
func (vc ValCurs) RubRates() (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(vc.Valutes)+1)
	rates[RUB] = decimal.NewFromInt(1)
	for _, v := range vc.Valutes {
		rate, err := v.UnitRate()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", v.CharCode, err)
		}
		if !rate.IsPositive() {
			continue
		}
		rates[v.CharCode] = rate
	}
	return rates, nil
}
