package dto

import (
	"order-sync/internal/entities"

	"github.com/aarondl/null/v8"
)

// UpdateOrderDTO - частичное обновление заказа. Json-имена полей совпадают
// с именами полей сущности Order: по ним ведётся пофиловый учёт конфликтов.
type UpdateOrderDTO struct {
	CustomerName    *string     `json:"customer_name,omitempty" validate:"omitempty,min=2,max=255"`
	CustomerPhone   *string     `json:"customer_phone,omitempty" validate:"omitempty,e164_NP"`
	BranchID        *uint64     `json:"branch_id,omitempty" validate:"omitempty,gt=0"`
	StatusID        *uint64     `json:"status_id,omitempty" validate:"omitempty,gt=0"`
	FulfillmentType *string     `json:"fulfillment_type,omitempty" validate:"omitempty,fulfillment_type"`
	DeliveryType    null.String `json:"delivery_type,omitempty"`
	PaidAmount      *int64      `json:"paid_amount,omitempty" validate:"omitempty,gt=0"`

	Logistics *entities.LogisticsAssignment `json:"logistics,omitempty"`
}

// RecordPaymentDTO - фиксация оплаты по заказу.
type RecordPaymentDTO struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Method string `json:"method" validate:"required,oneof=cash esewa khalti bank_transfer"`
	Note   string `json:"note,omitempty" validate:"omitempty,min=3"`
}

// CreateRefundDTO - возврат/обмен. Причина обязательна.
type CreateRefundDTO struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,min=5"`
}

// AssignLogisticsDTO - назначение логистического провайдера и, опционально, курьера.
type AssignLogisticsDTO struct {
	ProviderID   uint64  `json:"provider_id" validate:"required,gt=0"`
	ProviderName string  `json:"provider_name" validate:"required,min=2"`
	RiderID      *uint64 `json:"rider_id,omitempty" validate:"omitempty,gt=0"`
	CoveredArea  string  `json:"covered_area,omitempty"`
	DeliveryType string  `json:"delivery_type,omitempty" validate:"omitempty,oneof=D2B D2D"`
}

// CreateOrderItemDTO - новая позиция заказа.
type CreateOrderItemDTO struct {
	ProductID uint64 `json:"product_id" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"`
}
