package stubserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"order-sync/internal/backend"
	"order-sync/internal/dto"
	"order-sync/internal/entities"
	"order-sync/pkg/api"
	"order-sync/pkg/types"
	"order-sync/pkg/utils"

	"github.com/aarondl/null/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *StubServer) findOrder(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return api.Error(c, http.StatusBadRequest, "Неверный ID заказа")
	}

	s.delay()
	s.mu.Lock()
	order, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return api.Error(c, http.StatusNotFound, "Заказ не найден")
	}
	out := order.Clone()
	if s.lagDeliveryType {
		// Производное поле ещё "не доехало" до чтений.
		out.DeliveryType = null.String{}
	}
	s.mu.Unlock()

	return api.SuccessOne(c, http.StatusOK, "Заказ успешно найден", out)
}

func (s *StubServer) patchOrder(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return api.Error(c, http.StatusBadRequest, "Неверный ID заказа")
	}

	var patch dto.UpdateOrderDTO
	if err := c.Bind(&patch); err != nil {
		return api.Error(c, http.StatusBadRequest, "Неверное тело запроса")
	}

	s.delay()
	s.mu.Lock()
	if s.failNextPatch != "" {
		message := s.failNextPatch
		s.failNextPatch = ""
		s.mu.Unlock()
		s.logger.Debug("заглушка: впрыснут отказ PATCH", zap.String("message", message))
		return api.Error(c, http.StatusBadGateway, message)
	}

	order, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return api.Error(c, http.StatusNotFound, "Заказ не найден")
	}

	utils.ApplyUpdates(order, &patch)
	normalizeOrder(order)
	out := order.Clone()
	s.mu.Unlock()

	return api.SuccessOne(c, http.StatusOK, "Заказ успешно обновлён", out)
}

func (s *StubServer) createItem(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return api.Error(c, http.StatusBadRequest, "Неверный ID заказа")
	}

	var payload dto.CreateOrderItemDTO
	if err := c.Bind(&payload); err != nil {
		return api.Error(c, http.StatusBadRequest, "Неверное тело запроса")
	}

	s.delay()
	s.mu.Lock()
	order, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return api.Error(c, http.StatusNotFound, "Заказ не найден")
	}

	s.nextItemID++
	item := entities.OrderItem{
		ID:        strconv.Itoa(s.nextItemID),
		ProductID: payload.ProductID,
		Name:      payload.Name,
		Quantity:  payload.Quantity,
		UnitPrice: payload.UnitPrice,
	}
	order.Items = append(order.Items, item)
	order.TotalAmount += item.LineTotal()
	s.mu.Unlock()

	return api.SuccessOne(c, http.StatusCreated, "Позиция успешно создана", item)
}

func (s *StubServer) deleteItem(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return api.Error(c, http.StatusBadRequest, "Неверный ID заказа")
	}
	itemID := c.Param("itemId")

	s.delay()
	s.mu.Lock()
	order, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return api.Error(c, http.StatusNotFound, "Заказ не найден")
	}

	idx := order.FindItem(itemID)
	if idx < 0 {
		s.mu.Unlock()
		return api.Error(c, http.StatusNotFound, "Позиция заказа не найдена")
	}
	order.TotalAmount -= order.Items[idx].LineTotal()
	order.Items = append(order.Items[:idx], order.Items[idx+1:]...)
	s.mu.Unlock()

	return api.SuccessOne(c, http.StatusOK, "Позиция успешно удалена", struct{}{})
}

func (s *StubServer) lookup(c echo.Context) error {
	kind := types.LookupKind(c.QueryParam("kind"))
	searchText := strings.ToLower(c.QueryParam("search"))
	area := strings.ToLower(c.QueryParam("area"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	s.delay()
	s.mu.Lock()
	defer s.mu.Unlock()

	result := backend.LookupResult{}
	switch kind {
	case types.LookupBranch:
		for _, b := range s.branches {
			if searchText != "" && !strings.Contains(strings.ToLower(b.Name), searchText) {
				continue
			}
			if area != "" && !strings.Contains(strings.ToLower(b.CoveredArea), area) {
				continue
			}
			result.Branches = append(result.Branches, b)
		}
	case types.LookupRider:
		for _, r := range s.riders {
			if searchText != "" && !strings.Contains(strings.ToLower(r.Name), searchText) {
				continue
			}
			result.Riders = append(result.Riders, r)
		}
	case types.LookupProduct:
		for _, p := range s.products {
			if searchText != "" && !strings.Contains(strings.ToLower(p.Name), searchText) {
				continue
			}
			result.Products = append(result.Products, p)
		}
	default:
		return api.Error(c, http.StatusBadRequest, "Неизвестный вид справочника")
	}

	if limit > 0 {
		if len(result.Branches) > limit {
			result.Branches = result.Branches[:limit]
		}
		if len(result.Riders) > limit {
			result.Riders = result.Riders[:limit]
		}
		if len(result.Products) > limit {
			result.Products = result.Products[:limit]
		}
	}

	return api.SuccessOne(c, http.StatusOK, "Справочник успешно получен", result)
}

// delay моделирует сетевую задержку до обработки запроса.
func (s *StubServer) delay() {
	s.mu.Lock()
	d := s.latency
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}
