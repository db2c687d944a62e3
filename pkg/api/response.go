package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response - единый конверт JSON-ответа бэкофиса.
// Его же разбирает HTTP-клиент ядра синхронизации.
type Response[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Body    T      `json:"body,omitempty"`
}

type ListBody[T any] struct {
	List       []T    `json:"list"`
	TotalCount uint64 `json:"total_count"`
}

// SuccessOne — для возврата одного объекта
func SuccessOne[T any](c echo.Context, code int, message string, data T) error {
	return c.JSON(code, Response[T]{
		Status:  true,
		Message: message,
		Body:    data,
	})
}

func SuccessList[T any](c echo.Context, message string, list []T) error {
	if list == nil {
		list = make([]T, 0)
	}
	return c.JSON(http.StatusOK, Response[ListBody[T]]{
		Status:  true,
		Message: message,
		Body: ListBody[T]{
			List:       list,
			TotalCount: uint64(len(list)),
		},
	})
}

func Error(c echo.Context, code int, message string) error {
	return c.JSON(code, Response[struct{}]{
		Status:  false,
		Message: message,
	})
}
