package backend

import (
	"context"

	"order-sync/internal/dto"
	"order-sync/internal/entities"
	"order-sync/pkg/types"
)

// LookupResult - ответ typeahead-подбора по справочникам.
type LookupResult struct {
	Branches []entities.Branch  `json:"branches,omitempty"`
	Riders   []entities.Rider   `json:"riders,omitempty"`
	Products []entities.Product `json:"products,omitempty"`
}

// Backend - абстрактный бэкенд бэкофиса. Ядро синхронизации не знает ни
// транспорта, ни формата - только контракт: каждый вызов возвращает либо
// успешное значение, либо различимую ошибку. Успешные ответы PatchOrder и
// CreateItem авторитетны для содержащихся в них полей.
type Backend interface {
	FetchOrder(ctx context.Context, id uint64) (*entities.Order, error)
	PatchOrder(ctx context.Context, id uint64, patch dto.UpdateOrderDTO) (*entities.Order, error)
	CreateItem(ctx context.Context, orderID uint64, payload dto.CreateOrderItemDTO) (*entities.OrderItem, error)
	DeleteItem(ctx context.Context, orderID uint64, itemID string) error
	SearchLookup(ctx context.Context, q types.LookupQuery) (*LookupResult, error)
}
