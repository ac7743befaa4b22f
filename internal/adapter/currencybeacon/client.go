// Package currencybeacon implements provider.Client on top of the CurrencyBeacon REST API.
package currencybeacon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"fxrate-service/internal/adapter/provider"
	"fxrate-service/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const Name = "CurrencyBeacon"

var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

var (
	_ provider.Client         = (*Client)(nil)
	_ provider.CurrencyLister = (*Client)(nil)
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logrus.Logger
}

func NewClient(p entity.Provider, httpClient *http.Client, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(p.URL, "/"),
		apiKey:     p.APIKey(),
		logger:     logger,
	}
}

func (c *Client) Name() string {
	return Name
}

func (c *Client) endpoint(path string, params url.Values) string {
	params.Set("api_key", c.apiKey)
	return fmt.Sprintf("%s/%s?%s", c.baseURL, path, params.Encode())
}

// FetchRate reads the historical quote for date. The amount is not sent: conversion is
// done by the caller so the stored value is always the per-unit rate.
func (c *Client) FetchRate(ctx context.Context, source, target string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	c.logger.WithFields(logrus.Fields{
		"provider": Name,
		"source":   source,
		"target":   target,
		"amount":   amount.String(),
		"date":     date.Format(entity.DateLayout),
	}).Debug("Fetching single rate")

	rates, err := c.FetchHistorical(ctx, source, []string{target}, date)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s has no %s/%s rate for %s",
			entity.ErrProviderUnavailable, Name, source, target, date.Format(entity.DateLayout))
	}
	return rate, nil
}

func (c *Client) FetchHistorical(ctx context.Context, base string, targets []string, date time.Time) (map[string]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("base", base)
	params.Set("date", date.Format(entity.DateLayout))
	if len(targets) > 0 {
		params.Set("symbols", strings.Join(targets, ","))
	}

	var resp historicalResponse
	if err := provider.GetJSON(ctx, c.httpClient, c.endpoint("historical", params), &resp); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"provider": Name, "base": base}).Error("Failed to fetch historical rates")
		return nil, fmt.Errorf("fetch historical %s: %w", base, err)
	}

	rates := resp.rates()
	if rates == nil {
		return nil, fmt.Errorf("%w: %s historical response has no rates", entity.ErrProviderUnavailable, Name)
	}

	out := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		if code == base || !rate.IsPositive() {
			continue
		}
		out[code] = rate
	}

	c.logger.WithFields(logrus.Fields{
		"provider": Name,
		"base":     base,
		"date":     date.Format(entity.DateLayout),
		"count":    len(out),
	}).Info("Fetched historical rates")
	return out, nil
}

func (c *Client) FetchTimeseries(ctx context.Context, base, target string, start, end time.Time) (map[time.Time]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("base", base)
	params.Set("start_date", start.Format(entity.DateLayout))
	params.Set("end_date", end.Format(entity.DateLayout))
	params.Set("symbols", target)

	var resp timeseriesResponse
	if err := provider.GetJSON(ctx, c.httpClient, c.endpoint("timeseries", params), &resp); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"provider": Name, "base": base, "target": target}).Error("Failed to fetch timeseries")
		return nil, fmt.Errorf("fetch timeseries %s/%s: %w", base, target, err)
	}
	if resp.Response == nil {
		return nil, fmt.Errorf("%w: %s timeseries response has no \"response\" key", entity.ErrUnexpectedFormat, Name)
	}

	out := make(map[time.Time]decimal.Decimal, len(resp.Response))
	for day, rates := range resp.Response {
		d, err := time.Parse(entity.DateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("%w: %s timeseries date %q: %v", entity.ErrUnexpectedFormat, Name, day, err)
		}
		if rate, ok := rates[target]; ok && rate.IsPositive() {
			out[entity.Day(d)] = rate
		}
	}
	return out, nil
}

// FetchCurrencies lists fiat currencies. Entries without a valid ISO code are dropped.
func (c *Client) FetchCurrencies(ctx context.Context) ([]entity.Currency, error) {
	params := url.Values{}
	params.Set("type", "fiat")

	var resp currenciesResponse
	if err := provider.GetJSON(ctx, c.httpClient, c.endpoint("currencies", params), &resp); err != nil {
		c.logger.WithError(err).WithField("provider", Name).Error("Failed to fetch currencies")
		return nil, fmt.Errorf("fetch currencies: %w", err)
	}
	if resp.Response == nil {
		return nil, fmt.Errorf("%w: %s currencies response has no list", entity.ErrUnexpectedFormat, Name)
	}

	currencies := make([]entity.Currency, 0, len(resp.Response))
	for _, item := range resp.Response {
		code := strings.ToUpper(strings.TrimSpace(item.ShortCode))
		if !codePattern.MatchString(code) {
			c.logger.WithField("code", item.ShortCode).Debug("Skipping currency with invalid code")
			continue
		}
		currencies = append(currencies, entity.Currency{
			Code:   code,
			Name:   item.Name,
			Symbol: item.Symbol,
		})
	}
	return currencies, nil
}
