// Package apperr описывает таксономию ошибок движка жизненного цикла лидов.
package apperr

import (
	"errors"
	"fmt"
)

// Kind описывает машинно-проверяемый вид ошибки.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindInvalidTransition   Kind = "invalid_transition"
	KindAlreadyConverted    Kind = "already_converted"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindNotFound            Kind = "not_found"
	KindStorageUnavailable  Kind = "storage_unavailable"
)

// Error описывает ошибку операции с видом и человекочитаемым сообщением.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по виду, поэтому errors.Is(err, apperr.ErrValidation) работает
// для любой ошибки вида validation.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == ""
}

// Эталонные значения для errors.Is.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrAlreadyConverted    = &Error{Kind: KindAlreadyConverted}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrStorageUnavailable  = &Error{Kind: KindStorageUnavailable}
)

// Validation возвращает ошибку некорректного ввода.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransition возвращает ошибку недопустимого перехода статуса.
func InvalidTransition(from, to string) *Error {
	return &Error{Kind: KindInvalidTransition, Msg: fmt.Sprintf("transition %q -> %q is not allowed", from, to)}
}

// AlreadyConverted возвращается при повторной конвертации лида.
func AlreadyConverted(leadID int64) *Error {
	return &Error{Kind: KindAlreadyConverted, Msg: fmt.Sprintf("lead %d is already converted", leadID)}
}

// InsufficientBalance возвращается, если сумма превышает баланс кошелька.
func InsufficientBalance(amount, balance int64) *Error {
	return &Error{
		Kind: KindInsufficientBalance,
		Msg:  fmt.Sprintf("amount %d exceeds available balance %d", amount, balance),
	}
}

// NotFound возвращается, если сущность отсутствует в хранилище.
func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %v not found", entity, id)}
}

// StorageUnavailable оборачивает инфраструктурную ошибку хранилища.
func StorageUnavailable(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Msg: op, Err: err}
}

// KindOf возвращает вид ошибки или пустую строку для посторонних ошибок.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message возвращает сообщение ошибки без префикса вида.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
