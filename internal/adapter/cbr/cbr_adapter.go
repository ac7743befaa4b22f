// Package cbr implements provider.Client on top of the Central Bank of Russia daily XML feed.
// The feed quotes everything in roubles, so other pairs are cross rates through RUB.
package cbr

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fxrate-service/internal/adapter/provider"
	"fxrate-service/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

const (
	Name = "CBR"
	RUB  = "RUB"

	requestDateLayout = "02/01/2006"
)

var (
	_ provider.Client         = (*Client)(nil)
	_ provider.CurrencyLister = (*Client)(nil)
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Logger
	now        func() time.Time
}

func NewClient(p entity.Provider, httpClient *http.Client, logger *logrus.Logger) *Client {
	baseURL := strings.TrimSuffix(p.URL, "/")
	if baseURL == "" {
		baseURL = "https://www.cbr.ru/scripts"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Client) Name() string {
	return Name
}

// FetchRates downloads the daily document published for date.
func (c *Client) FetchRates(ctx context.Context, date time.Time) (*ValCurs, error) {
	url := fmt.Sprintf("%s/XML_daily.asp?date_req=%s", c.baseURL, date.Format(requestDateLayout))

	c.logger.Debugf("Fetching rates from URL: %s", url)

	// the feed rejects requests without a browser-like header set
	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	header.Set("Accept", "application/xml;q=0.9,*/*;q=0.8")
	header.Set("Accept-Encoding", "identity")

	body, err := provider.Get(ctx, c.httpClient, url, header)
	if err != nil {
		c.logger.WithError(err).Error("Failed to fetch CBR daily rates")
		return nil, fmt.Errorf("fetch daily rates: %w", err)
	}

	valCurs, err := c.decode(body)
	if err != nil {
		c.logger.WithError(err).Error("Failed to parse XML CBR")
		c.logger.Debugf("First 500 chars: %s", string(body)[:min(500, len(body))])
		return nil, fmt.Errorf("%w: parse XML: %v", entity.ErrProviderUnavailable, err)
	}

	if len(valCurs.Valutes) == 0 {
		c.logger.Warn("No valutes found in parsed response")
		return nil, fmt.Errorf("%w: CBR returned no rates for %s", entity.ErrProviderUnavailable, date.Format(entity.DateLayout))
	}

	c.logger.WithFields(logrus.Fields{
		"date":  valCurs.Date,
		"count": len(valCurs.Valutes),
	}).Info("Successfully parsed CBR daily rates")
	return valCurs, nil
}

func (c *Client) decode(body []byte) (*ValCurs, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		lower := strings.ToLower(charset)
		if lower == "windows-1251" || lower == "cp1251" {
			return charmap.Windows1251.NewDecoder().Reader(input), nil
		}
		return nil, fmt.Errorf("unsupported charset: %s", charset)
	}

	var valCurs ValCurs
	if err := decoder.Decode(&valCurs); err != nil {
		return nil, err
	}
	return &valCurs, nil
}

func (c *Client) rubRates(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error) {
	valCurs, err := c.FetchRates(ctx, date)
	if err != nil {
		return nil, err
	}
	rates, err := valCurs.RubRates()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrProviderUnavailable, err)
	}
	return rates, nil
}

func crossRates(table map[string]decimal.Decimal, base string, targets []string) (map[string]decimal.Decimal, error) {
	baseRate, ok := table[base]
	if !ok {
		return nil, fmt.Errorf("%w: CBR does not quote %s", entity.ErrProviderUnavailable, base)
	}
	if len(targets) == 0 {
		for code := range table {
			targets = append(targets, code)
		}
	}

	out := make(map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		targetRate, ok := table[target]
		if !ok || target == base {
			continue
		}
		out[target] = baseRate.Div(targetRate)
	}
	return out, nil
}

func (c *Client) FetchRate(ctx context.Context, source, target string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	rates, err := c.FetchHistorical(ctx, source, []string{target}, date)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: CBR does not quote %s", entity.ErrProviderUnavailable, target)
	}
	c.logger.WithFields(logrus.Fields{
		"source":    source,
		"target":    target,
		"rate":      rate.StringFixed(entity.StoragePrecision),
		"converted": rate.Mul(amount).StringFixed(entity.DisplayPrecision),
	}).Debug("Computed CBR cross rate")
	return rate, nil
}

func (c *Client) FetchHistorical(ctx context.Context, base string, targets []string, date time.Time) (map[string]decimal.Decimal, error) {
	table, err := c.rubRates(ctx, date)
	if err != nil {
		return nil, err
	}
	return crossRates(table, base, targets)
}

// FetchTimeseries issues one daily request per day in the range.
func (c *Client) FetchTimeseries(ctx context.Context, base, target string, start, end time.Time) (map[time.Time]decimal.Decimal, error) {
	days := entity.Days(start, end)
	out := make(map[time.Time]decimal.Decimal, len(days))
	for _, day := range days {
		rates, err := c.FetchHistorical(ctx, base, []string{target}, day)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", day.Format(entity.DateLayout), err)
		}
		if rate, ok := rates[target]; ok {
			out[day] = rate
		}
	}
	return out, nil
}

// FetchCurrencies lists the currencies of today's document plus the rouble itself.
func (c *Client) FetchCurrencies(ctx context.Context) ([]entity.Currency, error) {
	valCurs, err := c.FetchRates(ctx, c.now())
	if err != nil {
		return nil, err
	}

	currencies := []entity.Currency{{Code: RUB, Name: "Russian Ruble", Symbol: "₽"}}
	for _, v := range valCurs.Valutes {
		currencies = append(currencies, entity.Currency{
			Code: strings.ToUpper(v.CharCode),
			Name: v.Name,
		})
	}
	return currencies, nil
}
