package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fxrate-service/internal/adapter/cbr"
	"fxrate-service/internal/adapter/currencybeacon"
	"fxrate-service/internal/adapter/mockprovider"
	"fxrate-service/internal/adapter/postgres"
	"fxrate-service/internal/adapter/provider"
	"fxrate-service/internal/entity"
	"fxrate-service/internal/metrics"
	"fxrate-service/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ClientFactory builds the client for a configured provider.
type ClientFactory func(p entity.Provider) (provider.Client, error)

// NewClientFactory maps provider names to vendor clients. The mock client is only
// available when sandbox mode is on.
func NewClientFactory(cfg config.ProvidersConfig, logger *logrus.Logger) ClientFactory {
	httpClient := provider.NewHTTPClient(cfg.Timeout)
	var mock *mockprovider.Client
	if cfg.SandboxMode {
		mock = mockprovider.NewClient(logger)
	}

	return func(p entity.Provider) (provider.Client, error) {
		switch p.Name {
		case currencybeacon.Name:
			return currencybeacon.NewClient(p, httpClient, logger), nil
		case cbr.Name:
			return cbr.NewClient(p, httpClient, logger), nil
		case mockprovider.Name:
			if mock == nil {
				return nil, fmt.Errorf("%w: %s is only available in sandbox mode", entity.ErrProviderNotFound, p.Name)
			}
			return mock, nil
		}
		return nil, fmt.Errorf("%w: no client for %q", entity.ErrProviderNotFound, p.Name)
	}
}

type ProviderRegistry interface {
	ActiveProvidersOrdered(ctx context.Context) ([]entity.Provider, error)
	GetByName(ctx context.Context, name string) (entity.Provider, error)
	Client(ctx context.Context, name string) (provider.Client, error)
	ClientFor(p entity.Provider) (provider.Client, error)
}

var _ ProviderRegistry = (*Registry)(nil)

type Registry struct {
	repo    postgres.ProviderRepository
	factory ClientFactory
	cfg     config.ProvidersConfig
	metrics *metrics.RateMetrics
	logger  *logrus.Logger
}

func NewRegistry(repo postgres.ProviderRepository, factory ClientFactory, cfg config.ProvidersConfig, m *metrics.RateMetrics, logger *logrus.Logger) *Registry {
	return &Registry{
		repo:    repo,
		factory: factory,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

func sandboxProvider() entity.Provider {
	return entity.Provider{Name: mockprovider.Name, IsActive: true, Priority: math.MaxInt32}
}

// ActiveProvidersOrdered lists active providers by ascending priority. In sandbox mode the
// mock provider is appended last.
func (r *Registry) ActiveProvidersOrdered(ctx context.Context) ([]entity.Provider, error) {
	providers, err := r.repo.ListActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active providers: %w", err)
	}
	if r.cfg.SandboxMode {
		providers = append(providers, sandboxProvider())
	}
	return providers, nil
}

func (r *Registry) GetByName(ctx context.Context, name string) (entity.Provider, error) {
	if name == mockprovider.Name {
		if !r.cfg.SandboxMode {
			return entity.Provider{}, fmt.Errorf("%w: %s is only available in sandbox mode", entity.ErrProviderNotFound, name)
		}
		return sandboxProvider(), nil
	}

	p, err := r.repo.GetProviderByName(ctx, name)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return entity.Provider{}, fmt.Errorf("%w: %q", entity.ErrProviderNotFound, name)
		}
		return entity.Provider{}, fmt.Errorf("get provider %q: %w", name, err)
	}
	if !p.IsActive {
		return entity.Provider{}, fmt.Errorf("%w: %q is inactive", entity.ErrProviderNotFound, name)
	}
	return *p, nil
}

// Client resolves name, or the configured default when name is empty, to a ready client.
func (r *Registry) Client(ctx context.Context, name string) (provider.Client, error) {
	if name == "" {
		name = r.cfg.Default
	}
	p, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.ClientFor(p)
}

// ClientFor builds the client for p, bounded by the configured timeout and instrumented.
func (r *Registry) ClientFor(p entity.Provider) (provider.Client, error) {
	client, err := r.factory(p)
	if err != nil {
		return nil, err
	}

	ic := &instrumentedClient{
		next:    client,
		timeout: r.cfg.Timeout,
		metrics: r.metrics,
	}
	if lister, ok := client.(provider.CurrencyLister); ok {
		return &instrumentedLister{instrumentedClient: ic, lister: lister}, nil
	}
	return ic, nil
}

// instrumentedClient bounds every call with a deadline and records provider metrics.
// Failures that do not already carry a taxonomy error are reported as unavailability.
type instrumentedClient struct {
	next    provider.Client
	timeout time.Duration
	metrics *metrics.RateMetrics
}

func (c *instrumentedClient) Name() string {
	return c.next.Name()
}

func (c *instrumentedClient) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return c.boundN(ctx, 1)
}

// boundN allows up to n upstream requests, each with the full per-request timeout.
func (c *instrumentedClient) boundN(ctx context.Context, n int) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	if n < 1 {
		n = 1
	}
	return context.WithTimeout(ctx, c.timeout*time.Duration(n))
}

func (c *instrumentedClient) finish(operation string, started time.Time, err error) error {
	c.metrics.RecordProviderRequest(c.next.Name(), operation, started, err)
	if err == nil || errors.Is(err, entity.ErrProviderUnavailable) || errors.Is(err, entity.ErrUnexpectedFormat) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", entity.ErrProviderUnavailable, c.next.Name(), err)
}

func (c *instrumentedClient) FetchRate(ctx context.Context, source, target string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	started := time.Now()
	rate, err := c.next.FetchRate(ctx, source, target, amount, date)
	if err == nil && !rate.IsPositive() {
		err = fmt.Errorf("%w: non-positive rate %s", entity.ErrProviderUnavailable, rate)
	}
	return rate, c.finish("rate", started, err)
}

func (c *instrumentedClient) FetchHistorical(ctx context.Context, base string, targets []string, date time.Time) (map[string]decimal.Decimal, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	started := time.Now()
	rates, err := c.next.FetchHistorical(ctx, base, targets, date)
	return rates, c.finish("historical", started, err)
}

// FetchTimeseries budgets one timeout per day since some vendors answer a range with
// one request per day.
func (c *instrumentedClient) FetchTimeseries(ctx context.Context, base, target string, start, end time.Time) (map[time.Time]decimal.Decimal, error) {
	ctx, cancel := c.boundN(ctx, len(entity.Days(start, end)))
	defer cancel()

	started := time.Now()
	points, err := c.next.FetchTimeseries(ctx, base, target, start, end)
	return points, c.finish("timeseries", started, err)
}

type instrumentedLister struct {
	*instrumentedClient
	lister provider.CurrencyLister
}

func (c *instrumentedLister) FetchCurrencies(ctx context.Context) ([]entity.Currency, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	started := time.Now()
	currencies, err := c.lister.FetchCurrencies(ctx)
	return currencies, c.finish("currencies", started, err)
}
