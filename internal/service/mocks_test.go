package service

import (
	"context"
	"time"

	"fxrate-service/internal/adapter/postgres"
	"fxrate-service/internal/adapter/provider"
	"fxrate-service/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockRateRepo struct {
	mock.Mock
}

var _ postgres.RateRepository = (*mockRateRepo)(nil)

func (m *mockRateRepo) FindRate(ctx context.Context, source, target string, date time.Time) (*entity.ExchangeRate, error) {
	args := m.Called(ctx, source, target, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ExchangeRate), args.Error(1)
}

func (m *mockRateRepo) FindRange(ctx context.Context, source, target string, start, end time.Time) ([]entity.ExchangeRate, error) {
	args := m.Called(ctx, source, target, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ExchangeRate), args.Error(1)
}

func (m *mockRateRepo) UpsertRate(ctx context.Context, source, target string, date time.Time, value decimal.Decimal) error {
	args := m.Called(ctx, source, target, date, value)
	return args.Error(0)
}

func (m *mockRateRepo) UpsertRates(ctx context.Context, rates []entity.ExchangeRate) (int64, error) {
	args := m.Called(ctx, rates)
	return args.Get(0).(int64), args.Error(1)
}

type mockCurrencyRepo struct {
	mock.Mock
}

var _ postgres.CurrencyRepository = (*mockCurrencyRepo)(nil)

func (m *mockCurrencyRepo) GetCurrency(ctx context.Context, code string) (*entity.Currency, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Currency), args.Error(1)
}

func (m *mockCurrencyRepo) ListCurrencies(ctx context.Context) ([]entity.Currency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Currency), args.Error(1)
}

func (m *mockCurrencyRepo) ListHistoricalCurrencies(ctx context.Context) ([]entity.Currency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Currency), args.Error(1)
}

func (m *mockCurrencyRepo) InsertCurrencies(ctx context.Context, currencies []entity.Currency) (int64, error) {
	args := m.Called(ctx, currencies)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCurrencyRepo) SetLoadHistorical(ctx context.Context, codes []string, enabled bool) (int64, error) {
	args := m.Called(ctx, codes, enabled)
	return args.Get(0).(int64), args.Error(1)
}

// knownCurrencies makes GetCurrency succeed for codes and report ErrNotFound for anything else.
func (m *mockCurrencyRepo) knownCurrencies(codes ...string) {
	known := make(map[string]bool, len(codes))
	for _, c := range codes {
		known[c] = true
		m.On("GetCurrency", mock.Anything, c).Return(&entity.Currency{Code: c}, nil).Maybe()
	}
	m.On("GetCurrency", mock.Anything, mock.MatchedBy(func(code string) bool { return !known[code] })).
		Return(nil, postgres.ErrNotFound).Maybe()
}

type mockProviderRepo struct {
	mock.Mock
}

var _ postgres.ProviderRepository = (*mockProviderRepo)(nil)

func (m *mockProviderRepo) ListActiveProviders(ctx context.Context) ([]entity.Provider, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Provider), args.Error(1)
}

func (m *mockProviderRepo) GetProviderByName(ctx context.Context, name string) (*entity.Provider, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Provider), args.Error(1)
}

type mockRegistry struct {
	mock.Mock
}

var _ ProviderRegistry = (*mockRegistry)(nil)

func (m *mockRegistry) ActiveProvidersOrdered(ctx context.Context) ([]entity.Provider, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Provider), args.Error(1)
}

func (m *mockRegistry) GetByName(ctx context.Context, name string) (entity.Provider, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(entity.Provider), args.Error(1)
}

func (m *mockRegistry) Client(ctx context.Context, name string) (provider.Client, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provider.Client), args.Error(1)
}

func (m *mockRegistry) ClientFor(p entity.Provider) (provider.Client, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provider.Client), args.Error(1)
}

type mockClient struct {
	mock.Mock
	name string
}

var _ provider.Client = (*mockClient)(nil)

func newMockClient(name string) *mockClient {
	return &mockClient{name: name}
}

func (m *mockClient) Name() string {
	return m.name
}

func (m *mockClient) FetchRate(ctx context.Context, source, target string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, source, target, amount, date)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockClient) FetchHistorical(ctx context.Context, base string, targets []string, date time.Time) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, base, targets, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *mockClient) FetchTimeseries(ctx context.Context, base, target string, start, end time.Time) (map[time.Time]decimal.Decimal, error) {
	args := m.Called(ctx, base, target, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[time.Time]decimal.Decimal), args.Error(1)
}

type mockListerClient struct {
	*mockClient
}

var _ provider.CurrencyLister = (*mockListerClient)(nil)

func (m *mockListerClient) FetchCurrencies(ctx context.Context) ([]entity.Currency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Currency), args.Error(1)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decEq(s string) any {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}
