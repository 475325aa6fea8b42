// Package validation содержит проверку входных данных и преобразование ошибок
// валидатора в ошибки вида validation.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/leadflow/internal/apperr"
)

const (
	// DateLayout задаёт формат даты контакта.
	DateLayout = "2006-01-02"
	// ClockLayout задаёт формат времени контакта.
	ClockLayout = "15:04"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		mustRegister(validate, "date", func(fl validator.FieldLevel) bool {
			return IsValidDate(fl.Field().String())
		})
		mustRegister(validate, "clock", func(fl validator.FieldLevel) bool {
			return IsValidClock(fl.Field().String())
		})
	})
	return validate
}

// mustRegister регистрирует тег проверки и паникует при ошибке регистрации.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Struct проверяет структуру по тегам validate.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Validation("%v", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "date":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "clock":
		return fmt.Sprintf("%s must be a time in HH:MM format", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// IsValidDate проверяет дату в формате YYYY-MM-DD.
func IsValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// IsValidClock проверяет время в формате HH:MM.
func IsValidClock(s string) bool {
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}
