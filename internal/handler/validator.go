package handler

import (
	"strings"
	"sync"

	"fxrate-service/internal/usecase"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the "currency" tag to gin's validator. Codes are matched
// case-insensitively; the usecase upper-cases them.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			return usecase.ValidCode(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
		})
	})
}
