package mutator

import (
	"context"
	"fmt"
	"sync"

	"order-sync/internal/entities"
	"order-sync/internal/store"
	apperrors "order-sync/pkg/errors"
	"order-sync/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status - состояние жизненного цикла мутации.
type Status string

const (
	StatusStaged     Status = "staged"
	StatusInFlight   Status = "in_flight"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// RemoteCall - абстрактный сетевой вызов, подтверждающий мутацию заказа.
// Сервер может вернуть поля, которых не было в патче (пересчитанные суммы,
// нормализованный статус) - они считаются авторитетными.
type RemoteCall func(ctx context.Context) (*entities.Order, error)

// ItemRemoteCall - сетевой вызов создания позиции заказа. Возвращает позицию
// с серверным ID вместо временного.
type ItemRemoteCall func(ctx context.Context) (*entities.OrderItem, error)

// DeleteRemoteCall - сетевой вызов удаления позиции.
type DeleteRemoteCall func(ctx context.Context) error

// PendingMutation - одна незавершённая локальная правка.
type PendingMutation struct {
	ID       uuid.UUID
	EntityID uint64
	// Fields - json-имена полей, которые правит эта мутация.
	Fields []string
	// Snapshot - глубокая копия заказа до применения патча, для отката.
	Snapshot *entities.Order
	// TempID заполнен только для создания подсущности.
	TempID string

	status Status
	// gens - поколение каждого правимого поля на момент stage.
	gens map[string]uint64
	// baseGens - поколения всех полей заказа на момент stage: серверный ответ
	// не должен перетирать поля, тронутые более новыми правками.
	baseGens map[string]uint64
	// removedItem - для отката удаления позиции.
	removedItem *entities.OrderItem
}

// Status возвращает текущее состояние мутации.
func (m *PendingMutation) Status() Status {
	return m.status
}

// ConflictNotifier - то, что мутатор сообщает резолверу конфликтов.
type ConflictNotifier interface {
	NoteInFlight(entityID uint64, fields []string)
	NoteResolved(entityID uint64, fields []string)
	NoteCommitted(entityID uint64, field string, value interface{})
}

type fieldKey struct {
	entityID uint64
	field    string
}

// Mutator реализует семантику "применяем сразу, подтверждаем потом" для
// правок заказа. Правило параллелизма: последняя по намерению правка
// побеждает, а не последняя по времени ответа сервера.
type Mutator struct {
	mu       sync.Mutex
	store    *store.Store
	validate *validator.Validate
	notifier ConflictNotifier
	logger   *zap.Logger

	gens     map[fieldKey]uint64
	inflight map[fieldKey]uuid.UUID
}

func NewMutator(st *store.Store, validate *validator.Validate, notifier ConflictNotifier, logger *zap.Logger) *Mutator {
	return &Mutator{
		store:    st,
		validate: validate,
		notifier: notifier,
		logger:   logger,
		gens:     make(map[fieldKey]uint64),
		inflight: make(map[fieldKey]uuid.UUID),
	}
}

// Stage валидирует патч, снимает снимок и немедленно применяет патч к стору,
// чтобы UI отразил правку без задержки. Ошибка валидации не меняет стор.
func (m *Mutator) Stage(entityID uint64, patch interface{}) (*PendingMutation, error) {
	if err := m.validate.Struct(patch); err != nil {
		return nil, apperrors.NewInvalidInputError("патч не прошёл валидацию: %v", err)
	}

	fields := utils.PatchFields(patch)
	if len(fields) == 0 {
		return nil, apperrors.NewInvalidInputError("патч не содержит ни одного поля")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.store.Get(entityID)
	if err != nil {
		return nil, err
	}

	if _, err := m.store.ApplyPatch(entityID, patch); err != nil {
		return nil, err
	}

	mutation := &PendingMutation{
		ID:       uuid.New(),
		EntityID: entityID,
		Fields:   fields,
		Snapshot: snapshot,
		status:   StatusStaged,
		gens:     make(map[string]uint64, len(fields)),
		baseGens: m.entityGensLocked(entityID),
	}
	for _, f := range fields {
		key := fieldKey{entityID, f}
		m.gens[key]++
		mutation.gens[f] = m.gens[key]
	}

	m.logger.Debug("мутация поставлена",
		zap.Uint64("orderId", entityID),
		zap.Strings("fields", fields),
		zap.String("mutationId", mutation.ID.String()))
	return mutation, nil
}

// Commit переводит мутацию в in_flight, выполняет сетевой вызов и сводит
// результат со стором. Неудача откатывает снимок; устаревший результат
// (мутацию вытеснила более новая) отбрасывается молча. Повторов нет:
// действие перезапускает пользователь.
func (m *Mutator) Commit(ctx context.Context, mutation *PendingMutation, call RemoteCall) error {
	if err := m.markInFlight(mutation); err != nil {
		return err
	}

	payload, callErr := call(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	ownFields := m.currentFieldsLocked(mutation)
	m.clearInFlightLocked(mutation)

	if callErr != nil {
		mutation.status = StatusRolledBack
		for _, f := range ownFields {
			if err := m.store.ApplyField(mutation.EntityID, mutation.Snapshot, f); err != nil {
				m.logger.Error("откат поля не удался",
					zap.Uint64("orderId", mutation.EntityID), zap.String("field", f), zap.Error(err))
			}
		}
		m.notifier.NoteResolved(mutation.EntityID, mutation.Fields)

		if len(ownFields) == 0 {
			// Мутация уже вытеснена: её провал никого не волнует.
			m.logger.Debug("провал вытесненной мутации отброшен",
				zap.String("mutationId", mutation.ID.String()))
			return nil
		}
		m.logger.Warn("мутация откачена",
			zap.Uint64("orderId", mutation.EntityID),
			zap.Strings("fields", ownFields),
			zap.Error(callErr))
		return fmt.Errorf("мутация заказа %d не подтверждена: %w", mutation.EntityID, callErr)
	}

	m.mergePayloadLocked(mutation, payload, ownFields)
	mutation.status = StatusCommitted

	// Сначала фиксируем подтверждённые значения, потом снимаем пометку
	// "в полёте": иначе доигрывание отложенного рефреша не увидит свежий
	// коммит и перетрёт его устаревшим буфером.
	for _, f := range ownFields {
		if value, ok := store.OrderFieldValue(payload, f); ok {
			m.notifier.NoteCommitted(mutation.EntityID, f, value)
		}
	}
	m.notifier.NoteResolved(mutation.EntityID, mutation.Fields)

	m.logger.Debug("мутация закоммичена",
		zap.Uint64("orderId", mutation.EntityID),
		zap.String("mutationId", mutation.ID.String()))
	return nil
}

// StageItem добавляет новую позицию с временным ID: UI показывает её сразу,
// сервер присвоит настоящий ID на коммите.
func (m *Mutator) StageItem(entityID uint64, item entities.OrderItem) (*PendingMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.store.Get(entityID)
	if err != nil {
		return nil, err
	}

	tempID := "tmp-" + uuid.NewString()
	item.ID = tempID
	if err := m.store.AppendItem(entityID, item); err != nil {
		return nil, err
	}

	mutation := &PendingMutation{
		ID:       uuid.New(),
		EntityID: entityID,
		Fields:   []string{"items"},
		Snapshot: snapshot,
		TempID:   tempID,
		status:   StatusStaged,
		gens:     map[string]uint64{},
		baseGens: m.entityGensLocked(entityID),
	}
	m.logger.Debug("позиция добавлена с временным ID",
		zap.Uint64("orderId", entityID), zap.String("tempId", tempID))
	return mutation, nil
}

// CommitItem подтверждает создание позиции. Успех заменяет временный ID
// серверным; неудача убирает позицию целиком.
func (m *Mutator) CommitItem(ctx context.Context, mutation *PendingMutation, call ItemRemoteCall) error {
	if err := m.markInFlight(mutation); err != nil {
		return err
	}

	serverItem, callErr := call(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearInFlightLocked(mutation)

	if callErr != nil {
		mutation.status = StatusRolledBack
		if _, err := m.store.RemoveItem(mutation.EntityID, mutation.TempID); err != nil {
			m.logger.Error("не удалось убрать временную позицию при откате",
				zap.String("tempId", mutation.TempID), zap.Error(err))
		}
		m.notifier.NoteResolved(mutation.EntityID, mutation.Fields)
		return fmt.Errorf("создание позиции заказа %d не подтверждено: %w", mutation.EntityID, callErr)
	}

	if err := m.store.ReplaceItemID(mutation.EntityID, mutation.TempID, serverItem.ID); err != nil {
		m.logger.Error("замена временного ID не удалась",
			zap.String("tempId", mutation.TempID), zap.Error(err))
	}
	mutation.status = StatusCommitted
	m.notifier.NoteResolved(mutation.EntityID, mutation.Fields)
	return nil
}

// StageItemRemoval оптимистично убирает позицию; откат вернёт её на место.
func (m *Mutator) StageItemRemoval(entityID uint64, itemID string) (*PendingMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.store.Get(entityID)
	if err != nil {
		return nil, err
	}

	removed, err := m.store.RemoveItem(entityID, itemID)
	if err != nil {
		return nil, err
	}

	return &PendingMutation{
		ID:          uuid.New(),
		EntityID:    entityID,
		Fields:      []string{"items"},
		Snapshot:    snapshot,
		status:      StatusStaged,
		gens:        map[string]uint64{},
		baseGens:    m.entityGensLocked(entityID),
		removedItem: removed,
	}, nil
}

// CommitItemRemoval подтверждает удаление; неудача возвращает позицию.
func (m *Mutator) CommitItemRemoval(ctx context.Context, mutation *PendingMutation, call DeleteRemoteCall) error {
	if err := m.markInFlight(mutation); err != nil {
		return err
	}

	callErr := call(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearInFlightLocked(mutation)

	if callErr != nil {
		mutation.status = StatusRolledBack
		if mutation.removedItem != nil {
			if err := m.store.AppendItem(mutation.EntityID, *mutation.removedItem); err != nil {
				m.logger.Error("не удалось вернуть позицию при откате", zap.Error(err))
			}
		}
		m.notifier.NoteResolved(mutation.EntityID, mutation.Fields)
		return fmt.Errorf("удаление позиции заказа %d не подтверждено: %w", mutation.EntityID, callErr)
	}

	mutation.status = StatusCommitted
	m.notifier.NoteResolved(mutation.EntityID, mutation.Fields)
	return nil
}

func (m *Mutator) markInFlight(mutation *PendingMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mutation.status != StatusStaged {
		return apperrors.ErrMutationNotStaged
	}
	mutation.status = StatusInFlight
	for _, f := range mutation.Fields {
		key := fieldKey{mutation.EntityID, f}
		// В полёте по полю может быть только одна мутация: более старая
		// уже вытеснена по поколению, её запись перезаписываем.
		m.inflight[key] = mutation.ID
	}
	m.notifier.NoteInFlight(mutation.EntityID, mutation.Fields)
	return nil
}

// currentFieldsLocked возвращает поля мутации, по которым она всё ещё
// последняя по намерению.
func (m *Mutator) currentFieldsLocked(mutation *PendingMutation) []string {
	var current []string
	for _, f := range mutation.Fields {
		if m.gens[fieldKey{mutation.EntityID, f}] == mutation.gens[f] {
			current = append(current, f)
		}
	}
	return current
}

func (m *Mutator) clearInFlightLocked(mutation *PendingMutation) {
	for _, f := range mutation.Fields {
		key := fieldKey{mutation.EntityID, f}
		if m.inflight[key] == mutation.ID {
			delete(m.inflight, key)
		}
	}
}

// mergePayloadLocked вливает серверный ответ: каждое поле применяется, только
// если его не тронула более новая правка и по нему нет чужого вызова в полёте.
func (m *Mutator) mergePayloadLocked(mutation *PendingMutation, payload *entities.Order, ownFields []string) {
	own := make(map[string]struct{}, len(ownFields))
	for _, f := range ownFields {
		own[f] = struct{}{}
	}

	for _, f := range store.FieldNames() {
		key := fieldKey{mutation.EntityID, f}
		if _, isOwn := own[f]; !isOwn {
			if _, busy := m.inflight[key]; busy {
				continue
			}
			if m.gens[key] > mutation.baseGens[f] {
				continue
			}
			if _, patched := mutation.gens[f]; patched {
				// Собственное поле, но уже вытесненное - не трогаем.
				continue
			}
		}
		if err := m.store.ApplyField(mutation.EntityID, payload, f); err != nil {
			m.logger.Error("слияние серверного ответа не удалось",
				zap.Uint64("orderId", mutation.EntityID), zap.String("field", f), zap.Error(err))
		}
	}
}

func (m *Mutator) entityGensLocked(entityID uint64) map[string]uint64 {
	base := make(map[string]uint64)
	for key, gen := range m.gens {
		if key.entityID == entityID {
			base[key.field] = gen
		}
	}
	return base
}
