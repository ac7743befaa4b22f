package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"fxrate-service/internal/entity"
	"fxrate-service/internal/service"

	"github.com/sirupsen/logrus"
)

var _ RateUsecase = (*CurrencyUsecase)(nil)

type CurrencyUsecase struct {
	resolver   RateResolver
	assembler  SeriesAssembler
	currencies CurrencyLister
	logger     *logrus.Logger
	now        func() time.Time
}

func NewCurrencyUsecase(resolver RateResolver, assembler SeriesAssembler, currencies CurrencyLister, logger *logrus.Logger) *CurrencyUsecase {
	return &CurrencyUsecase{
		resolver:   resolver,
		assembler:  assembler,
		currencies: currencies,
		logger:     logger,
		now:        time.Now,
	}
}

var codeRegexp = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidCode reports whether code is a three-letter upper-case currency code.
func ValidCode(code string) bool {
	return codeRegexp.MatchString(code)
}

func normalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !ValidCode(c) {
		return "", fmt.Errorf("%w: invalid currency code %q", entity.ErrValidation, code)
	}
	return c, nil
}

func normalizeCodes(field string, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: %s must not be empty", entity.ErrValidation, field)
	}
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		c, err := normalizeCode(code)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (uc *CurrencyUsecase) parseDate(field, value string) (time.Time, error) {
	date, err := time.Parse(entity.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", entity.ErrValidation, field)
	}
	if date.After(entity.Day(uc.now())) {
		return time.Time{}, fmt.Errorf("%w: %s %s is in the future", entity.ErrValidation, field, value)
	}
	return date, nil
}

func (uc *CurrencyUsecase) ConvertMultiple(ctx context.Context, req ConvertRequest) (ConvertResponse, error) {
	source, err := normalizeCode(req.SourceCurrency)
	if err != nil {
		return nil, err
	}
	targets, err := normalizeCodes("exchanged_currencies", req.ExchangedCurrencies)
	if err != nil {
		return nil, err
	}
	date, err := uc.parseDate("valuation_date", req.ValuationDate)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", entity.ErrValidation)
	}

	results, err := uc.resolver.ResolveMany(ctx, service.ConversionRequest{
		Source:   source,
		Targets:  targets,
		Date:     date,
		Provider: strings.TrimSpace(req.Provider),
		Amount:   req.Amount,
	})
	if err != nil {
		uc.logger.WithError(err).WithField("source", source).Error("Conversion request failed")
		return nil, err
	}

	resp := make(ConvertResponse, len(results))
	failed := 0
	for target, res := range results {
		if res.Err != nil {
			failed++
			resp[target] = PairError{Error: res.Err.Error()}
			continue
		}
		resp[target] = ConvertedRate{
			Rate:            res.Resolution.Rate.InexactFloat64(),
			ConvertedAmount: res.Resolution.ConvertedAmount.InexactFloat64(),
			FetchedFrom:     res.Resolution.FetchedFrom,
		}
	}

	uc.logger.WithFields(logrus.Fields{
		"source":  source,
		"date":    date.Format(entity.DateLayout),
		"targets": len(results),
		"failed":  failed,
	}).Info("Conversion resolved")
	return resp, nil
}

func (uc *CurrencyUsecase) Timeseries(ctx context.Context, req TimeseriesRequest) (TimeseriesResponse, error) {
	base, err := normalizeCode(req.BaseCurrency)
	if err != nil {
		return nil, err
	}
	targets, err := normalizeCodes("to_currencies", req.ToCurrencies)
	if err != nil {
		return nil, err
	}
	start, err := uc.parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := uc.parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}

	results, err := uc.assembler.Assemble(ctx, service.TimeseriesRequest{
		Base:     base,
		Targets:  targets,
		Start:    start,
		End:      end,
		Provider: strings.TrimSpace(req.Provider),
	})
	if err != nil {
		uc.logger.WithError(err).WithField("base", base).Error("Timeseries request failed")
		return nil, err
	}

	resp := make(TimeseriesResponse, len(results))
	for target, res := range results {
		if res.Err != nil {
			resp[target] = PairError{Error: res.Err.Error()}
			continue
		}
		points := make([]RatePoint, 0, len(res.Points))
		for _, p := range res.Points {
			points = append(points, RatePoint{
				ValuationDate: p.ValuationDate.Format(entity.DateLayout),
				RateValue:     p.RateValue.StringFixed(entity.StoragePrecision),
			})
		}
		resp[target] = SeriesRates{Rates: points}
	}
	return resp, nil
}

func (uc *CurrencyUsecase) ListCurrencies(ctx context.Context) ([]CurrencyResponse, error) {
	currencies, err := uc.currencies.ListCurrencies(ctx)
	if err != nil {
		uc.logger.WithError(err).Error("Failed to list currencies")
		return nil, err
	}

	out := make([]CurrencyResponse, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, CurrencyResponse{ID: c.ID, Code: c.Code, Name: c.Name, Symbol: c.Symbol})
	}
	return out, nil
}
