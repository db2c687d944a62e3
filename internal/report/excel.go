package report

import (
	"context"
	"fmt"
	"sort"

	"order-sync/internal/entities"
	"order-sync/internal/override"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var reportHeaders = []interface{}{
	"ID", "Код", "Клиент", "Телефон", "Способ доставки", "Тип доставки",
	"Сумма", "Аванс", "Оплачено", "Остаток", "Позиции",
}

// ExcelExporter выгружает список заказов в xlsx. Тип доставки читается через
// кеш переопределений: в отчёте то же "эффективное" значение, что и на экране.
type ExcelExporter struct {
	overrides override.Cache
	logger    *zap.Logger
}

func NewExcelExporter(overrides override.Cache, logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{overrides: overrides, logger: logger}
}

func (e *ExcelExporter) Export(ctx context.Context, orders []entities.Order) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Заказы"
	f.SetSheetName("Sheet1", sheet)
	f.SetSheetRow(sheet, "A1", &reportHeaders)
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", "K1", style)

	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	for i, order := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("ошибка адресации ячейки: %w", err)
		}
		row := e.rowToSlice(ctx, order)
		f.SetSheetRow(sheet, cell, &row)
	}

	f.SetColWidth(sheet, "C", "C", 25)
	f.SetColWidth(sheet, "E", "F", 18)
	f.SetColWidth(sheet, "K", "K", 40)
	return f, nil
}

func (e *ExcelExporter) rowToSlice(ctx context.Context, order entities.Order) []interface{} {
	deliveryType := ""
	if masked, ok := e.overrides.Get(ctx, override.Key(order.ID, "delivery_type")); ok {
		deliveryType = masked
	} else if order.DeliveryType.Valid {
		deliveryType = order.DeliveryType.String
	}

	items := ""
	for i, item := range order.Items {
		if i > 0 {
			items += ", "
		}
		items += fmt.Sprintf("%s x%d", item.Name, item.Quantity)
	}

	return []interface{}{
		order.ID, order.Code, order.CustomerName, order.CustomerPhone,
		order.FulfillmentType, deliveryType,
		order.TotalAmount, order.AdvanceAmount, order.PaidAmount, order.RemainingAmount(),
		items,
	}
}
