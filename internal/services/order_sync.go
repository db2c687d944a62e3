package services

import (
	"context"
	"errors"
	"fmt"

	"order-sync/internal/backend"
	"order-sync/internal/dto"
	"order-sync/internal/entities"
	"order-sync/internal/mutator"
	"order-sync/internal/override"
	"order-sync/internal/resolver"
	"order-sync/internal/search"
	"order-sync/internal/store"
	apperrors "order-sync/pkg/errors"
	"order-sync/pkg/config"
	"order-sync/pkg/types"
	"order-sync/pkg/utils"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type OrderSyncServiceInterface interface {
	LoadOrder(ctx context.Context, id uint64) (*entities.Order, error)
	Refresh(ctx context.Context, id uint64) error
	GetOrder(id uint64) (*entities.Order, error)

	UpdateFulfillmentType(ctx context.Context, id uint64, fulfillmentType string) error
	RecordPayment(ctx context.Context, id uint64, payment dto.RecordPaymentDTO) error
	CreateRefund(ctx context.Context, id uint64, refund dto.CreateRefundDTO) error
	AssignLogistics(ctx context.Context, id uint64, assignment dto.AssignLogisticsDTO) error
	AddItem(ctx context.Context, id uint64, item dto.CreateOrderItemDTO) error
	RemoveItem(ctx context.Context, id uint64, itemID string) error

	EffectiveDeliveryType(ctx context.Context, id uint64) (string, error)
	NewBranchFilter(onResults search.BranchResultsFunc) *search.DualFilter
	NewRiderSearch(onResults func([]entities.Rider)) *search.Debouncer
	NewProductSearch(onResults func([]entities.Product)) *search.Debouncer
}

// OrderSyncService - фасад над ядром синхронизации: конкретные операции
// экранов бэкофиса поверх стора, мутатора, резолвера и кеша переопределений.
type OrderSyncService struct {
	store    *store.Store
	mutator  *mutator.Mutator
	resolver *resolver.Resolver
	override override.Cache
	backend  backend.Backend
	validate *validator.Validate
	logger   *zap.Logger
	cfg      config.SyncConfig
}

func NewOrderSyncService(
	st *store.Store,
	mut *mutator.Mutator,
	res *resolver.Resolver,
	overrideCache override.Cache,
	bk backend.Backend,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SyncConfig,
) OrderSyncServiceInterface {
	return &OrderSyncService{
		store:    st,
		mutator:  mut,
		resolver: res,
		override: overrideCache,
		backend:  bk,
		validate: validate,
		logger:   logger,
		cfg:      cfg,
	}
}

// LoadOrder - первичная загрузка экрана: полный образ кладётся в стор как есть.
func (s *OrderSyncService) LoadOrder(ctx context.Context, id uint64) (*entities.Order, error) {
	order, err := s.backend.FetchOrder(ctx, id)
	if err != nil {
		s.logger.Error("не удалось загрузить заказ", zap.Uint64("orderId", id), zap.Error(err))
		return nil, err
	}
	s.store.Put(order)
	return order, nil
}

// Refresh - фоновое обновление: полный образ проходит через резолвер
// конфликтов, чтобы не перетереть незавершённые локальные правки.
func (s *OrderSyncService) Refresh(ctx context.Context, id uint64) error {
	order, err := s.backend.FetchOrder(ctx, id)
	if err != nil {
		return err
	}
	if !s.store.Has(id) {
		s.store.Put(order)
		return nil
	}

	// Авторитетный рефреш, подтвердивший значение маски, снимает её досрочно.
	key := override.Key(id, "delivery_type")
	if masked, ok := s.override.Get(ctx, key); ok {
		if order.DeliveryType.Valid && order.DeliveryType.String == masked {
			if err := s.override.Clear(ctx, key); err != nil {
				s.logger.Warn("не удалось снять переопределение", zap.String("key", key), zap.Error(err))
			}
		}
	}

	return s.resolver.OnRefresh(id, order)
}

// GetOrder отдаёт копию канонического состояния для рендера.
func (s *OrderSyncService) GetOrder(id uint64) (*entities.Order, error) {
	return s.store.Get(id)
}

// UpdateFulfillmentType - смена способа доставки с мгновенным локальным
// применением и откатом при отказе сети.
func (s *OrderSyncService) UpdateFulfillmentType(ctx context.Context, id uint64, fulfillmentType string) error {
	patch := dto.UpdateOrderDTO{FulfillmentType: utils.StringPtr(fulfillmentType)}
	m, err := s.mutator.Stage(id, &patch)
	if err != nil {
		return err
	}
	return s.mutator.Commit(ctx, m, func(ctx context.Context) (*entities.Order, error) {
		return s.backend.PatchOrder(ctx, id, patch)
	})
}

// RecordPayment фиксирует оплату. Сумма сверяется с остатком до того, как
// что-либо попадёт в стор.
func (s *OrderSyncService) RecordPayment(ctx context.Context, id uint64, payment dto.RecordPaymentDTO) error {
	if err := s.validate.Struct(&payment); err != nil {
		return apperrors.NewInvalidInputError("оплата не прошла валидацию: %v", err)
	}

	current, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if payment.Amount > current.RemainingAmount() {
		return apperrors.NewInvalidInputError(
			"сумма оплаты %d больше остатка %d", payment.Amount, current.RemainingAmount())
	}

	patch := dto.UpdateOrderDTO{PaidAmount: utils.Int64Ptr(current.PaidAmount + payment.Amount)}
	m, err := s.mutator.Stage(id, &patch)
	if err != nil {
		return err
	}
	return s.mutator.Commit(ctx, m, func(ctx context.Context) (*entities.Order, error) {
		return s.backend.PatchOrder(ctx, id, patch)
	})
}

// CreateRefund - возврат: валидация причины до стейджа, затем обычный
// оптимистичный патч уменьшенной оплаты.
func (s *OrderSyncService) CreateRefund(ctx context.Context, id uint64, refund dto.CreateRefundDTO) error {
	if err := s.validate.Struct(&refund); err != nil {
		return apperrors.NewInvalidInputError("возврат не прошёл валидацию: %v", err)
	}

	current, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if refund.Amount > current.PaidAmount {
		return apperrors.NewInvalidInputError(
			"сумма возврата %d больше оплаченного %d", refund.Amount, current.PaidAmount)
	}

	patch := dto.UpdateOrderDTO{PaidAmount: utils.Int64Ptr(current.PaidAmount - refund.Amount)}
	m, err := s.mutator.Stage(id, &patch)
	if err != nil {
		return err
	}
	return s.mutator.Commit(ctx, m, func(ctx context.Context) (*entities.Order, error) {
		return s.backend.PatchOrder(ctx, id, patch)
	})
}

// AssignLogistics - назначение провайдера. Первичный патч и назначение
// курьера - логически независимые записи: отказ второго не откатывает первый.
// После успешного первичного патча поле delivery_type маскируется на ttl:
// ближайшие рефреши могут его ещё не отдавать.
func (s *OrderSyncService) AssignLogistics(ctx context.Context, id uint64, assignment dto.AssignLogisticsDTO) error {
	if err := s.validate.Struct(&assignment); err != nil {
		return apperrors.NewInvalidInputError("назначение логистики не прошло валидацию: %v", err)
	}

	patch := dto.UpdateOrderDTO{
		Logistics: &entities.LogisticsAssignment{
			ProviderID:   assignment.ProviderID,
			ProviderName: assignment.ProviderName,
			CoveredArea:  assignment.CoveredArea,
		},
	}
	if assignment.DeliveryType != "" {
		patch.DeliveryType = null.StringFrom(assignment.DeliveryType)
	}

	m, err := s.mutator.Stage(id, &patch)
	if err != nil {
		return err
	}
	if err := s.mutator.Commit(ctx, m, func(ctx context.Context) (*entities.Order, error) {
		return s.backend.PatchOrder(ctx, id, patch)
	}); err != nil {
		return err
	}

	// Маска производного поля на время, пока бэкенд догоняет.
	if committed, getErr := s.store.Get(id); getErr == nil && committed.DeliveryType.Valid {
		key := override.Key(id, "delivery_type")
		if err := s.override.Set(ctx, key, committed.DeliveryType.String, s.cfg.OverrideTTL); err != nil {
			s.logger.Warn("не удалось поставить переопределение", zap.String("key", key), zap.Error(err))
		}
	}

	// Вторичная запись: курьер. Провал репортим отдельно, первичная остаётся.
	if assignment.RiderID != nil {
		if err := s.assignRider(ctx, id, *assignment.RiderID); err != nil {
			s.logger.Warn("провайдер назначен, но курьер - нет",
				zap.Uint64("orderId", id), zap.Uint64("riderId", *assignment.RiderID), zap.Error(err))
			return fmt.Errorf("назначение курьера не удалось (провайдер сохранён): %w", err)
		}
	}
	return nil
}

func (s *OrderSyncService) assignRider(ctx context.Context, id uint64, riderID uint64) error {
	current, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if current.Logistics == nil {
		return apperrors.ErrOrderNotFound
	}

	logistics := *current.Logistics
	logistics.RiderID = &riderID

	patch := dto.UpdateOrderDTO{Logistics: &logistics}
	m, err := s.mutator.Stage(id, &patch)
	if err != nil {
		return err
	}
	return s.mutator.Commit(ctx, m, func(ctx context.Context) (*entities.Order, error) {
		return s.backend.PatchOrder(ctx, id, patch)
	})
}

// AddItem добавляет позицию с временным ID; серверный ID встаёт на коммите.
func (s *OrderSyncService) AddItem(ctx context.Context, id uint64, payload dto.CreateOrderItemDTO) error {
	if err := s.validate.Struct(&payload); err != nil {
		return apperrors.NewInvalidInputError("позиция не прошла валидацию: %v", err)
	}

	item := entities.OrderItem{
		ProductID: payload.ProductID,
		Name:      payload.Name,
		Quantity:  payload.Quantity,
		UnitPrice: payload.UnitPrice,
	}
	m, err := s.mutator.StageItem(id, item)
	if err != nil {
		return err
	}
	return s.mutator.CommitItem(ctx, m, func(ctx context.Context) (*entities.OrderItem, error) {
		return s.backend.CreateItem(ctx, id, payload)
	})
}

// RemoveItem оптимистично убирает позицию; отказ сети возвращает её на место.
func (s *OrderSyncService) RemoveItem(ctx context.Context, id uint64, itemID string) error {
	m, err := s.mutator.StageItemRemoval(id, itemID)
	if err != nil {
		return err
	}
	return s.mutator.CommitItemRemoval(ctx, m, func(ctx context.Context) error {
		return s.backend.DeleteItem(ctx, id, itemID)
	})
}

// EffectiveDeliveryType - значение для отображения: неистёкшая маска
// побеждает, иначе каноническое (возможно, ещё пустое).
func (s *OrderSyncService) EffectiveDeliveryType(ctx context.Context, id uint64) (string, error) {
	if value, ok := s.override.Get(ctx, override.Key(id, "delivery_type")); ok {
		return value, nil
	}

	order, err := s.store.Get(id)
	if err != nil {
		return "", err
	}
	if order.DeliveryType.Valid {
		return order.DeliveryType.String, nil
	}
	return "", nil
}

// NewBranchFilter - двойной debounce-фильтр по названию филиала и зоне покрытия.
func (s *OrderSyncService) NewBranchFilter(onResults search.BranchResultsFunc) *search.DualFilter {
	query := func(ctx context.Context, name, area string) ([]entities.Branch, error) {
		result, err := s.backend.SearchLookup(ctx, types.LookupQuery{
			Kind:   types.LookupBranch,
			Search: name,
			Area:   area,
		})
		if err != nil {
			return nil, err
		}
		return result.Branches, nil
	}
	return search.NewDualFilter(s.cfg.DebounceInterval, s.cfg.MinSearchLength, query, onResults, s.logger)
}

// NewRiderSearch - debounce-подбор курьера.
func (s *OrderSyncService) NewRiderSearch(onResults func([]entities.Rider)) *search.Debouncer {
	return search.NewDebouncer(s.cfg.DebounceInterval, s.cfg.MinSearchLength,
		func(ctx context.Context, text string) {
			result, err := s.backend.SearchLookup(ctx, types.LookupQuery{Kind: types.LookupRider, Search: text})
			if err != nil {
				s.logger.Warn("поиск курьеров не удался", zap.String("text", text), zap.Error(err))
				return
			}
			onResults(result.Riders)
		}, s.logger)
}

// NewProductSearch - debounce-подбор товара.
func (s *OrderSyncService) NewProductSearch(onResults func([]entities.Product)) *search.Debouncer {
	return search.NewDebouncer(s.cfg.DebounceInterval, s.cfg.MinSearchLength,
		func(ctx context.Context, text string) {
			result, err := s.backend.SearchLookup(ctx, types.LookupQuery{Kind: types.LookupProduct, Search: text})
			if err != nil {
				s.logger.Warn("поиск товаров не удался", zap.String("text", text), zap.Error(err))
				return
			}
			onResults(result.Products)
		}, s.logger)
}

// IsValidationError сообщает, что ошибка - отказ валидации до стейджа
// (показывается рядом с полем, а не тостом).
func IsValidationError(err error) bool {
	var invalid *apperrors.InvalidInputError
	return errors.As(err, &invalid)
}
