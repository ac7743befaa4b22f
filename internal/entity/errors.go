package entity

import "errors"

var (
	ErrCurrencyNotFound    = errors.New("currency not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrUnexpectedFormat    = errors.New("unexpected provider response format")
	ErrValidation          = errors.New("validation error")
)
