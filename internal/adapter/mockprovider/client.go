// Package mockprovider generates pseudo-random rates. It is only constructed in sandbox mode.
package mockprovider

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"fxrate-service/internal/adapter/provider"
	"fxrate-service/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const Name = "Mock"

var (
	minRate = decimal.RequireFromString("0.5")
	maxRate = decimal.RequireFromString("1.5")
)

var _ provider.Client = (*Client)(nil)

type Client struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	logger *logrus.Logger
}

func NewClient(logger *logrus.Logger) *Client {
	return NewSeededClient(uint64(time.Now().UnixNano()), logger)
}

// NewSeededClient returns a client with a deterministic sequence.
func NewSeededClient(seed uint64, logger *logrus.Logger) *Client {
	return &Client{
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger: logger,
	}
}

func (c *Client) Name() string {
	return Name
}

// rate returns a value uniformly drawn from [0.5, 1.5] at display precision.
func (c *Client) rate() decimal.Decimal {
	c.mu.Lock()
	f := c.rnd.Float64()
	c.mu.Unlock()

	span := maxRate.Sub(minRate)
	return minRate.Add(span.Mul(decimal.NewFromFloat(f))).Round(entity.DisplayPrecision)
}

func (c *Client) FetchRate(_ context.Context, source, target string, _ decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	r := c.rate()
	c.logger.WithFields(logrus.Fields{
		"source": source,
		"target": target,
		"date":   date.Format(entity.DateLayout),
		"rate":   r.String(),
	}).Debug("Mock rate generated")
	return r, nil
}

func (c *Client) FetchHistorical(_ context.Context, base string, targets []string, _ time.Time) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		if target == base {
			continue
		}
		out[target] = c.rate()
	}
	return out, nil
}

func (c *Client) FetchTimeseries(_ context.Context, _, _ string, start, end time.Time) (map[time.Time]decimal.Decimal, error) {
	days := entity.Days(start, end)
	out := make(map[time.Time]decimal.Decimal, len(days))
	for _, day := range days {
		out[day] = c.rate()
	}
	return out, nil
}
