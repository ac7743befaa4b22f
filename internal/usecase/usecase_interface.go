package usecase

import (
	"context"

	"fxrate-service/internal/entity"
	"fxrate-service/internal/service"
)

type RateUsecase interface {
	ConvertMultiple(ctx context.Context, req ConvertRequest) (ConvertResponse, error)
	Timeseries(ctx context.Context, req TimeseriesRequest) (TimeseriesResponse, error)
	ListCurrencies(ctx context.Context) ([]CurrencyResponse, error)
}

type RateResolver interface {
	ResolveMany(ctx context.Context, req service.ConversionRequest) (map[string]service.PairResult, error)
}

type SeriesAssembler interface {
	Assemble(ctx context.Context, req service.TimeseriesRequest) (map[string]service.SeriesResult, error)
}

type CurrencyLister interface {
	ListCurrencies(ctx context.Context) ([]entity.Currency, error)
}
