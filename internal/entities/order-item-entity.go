package entities

// OrderItem - позиция заказа. ID хранится строкой: до подтверждения сервером
// это временный идентификатор вида "tmp-<uuid>", после - серверный ID.
type OrderItem struct {
	ID        string `json:"id"`
	ProductID uint64 `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

func (i *OrderItem) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}
