package errors

import (
	"fmt"
	"net/http"
)

var (
	// Заказы и подсущности
	ErrOrderNotFound    = fmt.Errorf("заказ не найден")
	ErrItemNotFound     = fmt.Errorf("позиция заказа не найдена")
	ErrMutationNotFound = fmt.Errorf("мутация не найдена")

	// Оптимистичные мутации
	ErrMutationSuperseded = fmt.Errorf("мутация вытеснена более новым изменением")
	ErrMutationNotStaged  = fmt.Errorf("мутация не находится в состоянии staged")

	// Бэкенд
	ErrBackendUnavailable = fmt.Errorf("бэкенд недоступен")
	ErrNotFound           = fmt.Errorf("запись не найдена")
	ErrBadRequest         = fmt.Errorf("неверный запрос")
)

// Кастомные типы ошибок
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// HttpError переносит HTTP-статус ответа бэкенда вместе с внутренней ошибкой.
type HttpError struct {
	Code    int
	Message string
	Err     error
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err}
}

// FromStatusCode сопоставляет статус ответа бэкенда с доменной ошибкой.
func FromStatusCode(code int, message string) error {
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, message)
	default:
		return NewHttpError(code, message, nil)
	}
}
