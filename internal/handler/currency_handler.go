package handler

import (
	"errors"
	"net/http"

	"fxrate-service/internal/entity"
	"fxrate-service/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CurrencyHandler struct {
	usecase usecase.RateUsecase
	logger  *logrus.Logger
}

func NewCurrencyHandler(usecase usecase.RateUsecase, logger *logrus.Logger) *CurrencyHandler {
	RegisterValidators()
	return &CurrencyHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// statusFor maps request-level errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrCurrencyNotFound), errors.Is(err, entity.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *CurrencyHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	h.logger.WithError(err).WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"status":     status,
	}).Error("Request failed")
	c.JSON(status, gin.H{"error": msg})
}

func (h *CurrencyHandler) ConvertMultipleCurrency(c *gin.Context) {
	var req usecase.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.usecase.ConvertMultiple(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CurrencyHandler) MultipleCurrencyTimeseries(c *gin.Context) {
	var req usecase.TimeseriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.usecase.Timeseries(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CurrencyHandler) CurrencyList(c *gin.Context) {
	list, err := h.usecase.ListCurrencies(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
