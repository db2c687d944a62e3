package entities

import (
	"order-sync/pkg/types"

	"github.com/aarondl/null/v8"
)

// Способы доставки заказа.
const (
	FulfillmentInsideValley  = "inside_valley"
	FulfillmentOutsideValley = "outside_valley"
)

type Order struct {
	ID              uint64               `json:"id"`
	Code            string               `json:"code"`
	CustomerName    string               `json:"customer_name"`
	CustomerPhone   string               `json:"customer_phone"`
	BranchID        *uint64              `json:"branch_id"`
	StatusID        uint64               `json:"status_id"`
	FulfillmentType string               `json:"fulfillment_type"`
	DeliveryType    null.String          `json:"delivery_type"`
	TotalAmount     int64                `json:"total_amount"`
	AdvanceAmount   int64                `json:"advance_amount"`
	PaidAmount      int64                `json:"paid_amount"`
	Items           []OrderItem          `json:"items"`
	Logistics       *LogisticsAssignment `json:"logistics"`

	types.BaseEntity
}

// RemainingAmount - сколько клиенту осталось оплатить.
func (o *Order) RemainingAmount() int64 {
	return o.TotalAmount - o.AdvanceAmount - o.PaidAmount
}

// Clone делает глубокую копию заказа. Снимки для отката и копии,
// отдаваемые наружу из стора, всегда строятся через Clone.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.BranchID != nil {
		v := *o.BranchID
		clone.BranchID = &v
	}
	if o.Items != nil {
		clone.Items = make([]OrderItem, len(o.Items))
		copy(clone.Items, o.Items)
	}
	if o.Logistics != nil {
		l := *o.Logistics
		if o.Logistics.RiderID != nil {
			r := *o.Logistics.RiderID
			l.RiderID = &r
		}
		clone.Logistics = &l
	}
	if o.CreatedAt != nil {
		t := *o.CreatedAt
		clone.CreatedAt = &t
	}
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		clone.UpdatedAt = &t
	}
	return &clone
}

// FindItem возвращает индекс позиции по её ID (серверному или временному).
func (o *Order) FindItem(itemID string) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}
