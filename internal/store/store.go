package store

import (
	"reflect"
	"sync"

	"order-sync/internal/entities"
	apperrors "order-sync/pkg/errors"
	"order-sync/pkg/utils"

	"go.uber.org/zap"
)

// Decision - пофиловое решение при приходе полного обновления с сервера.
type Decision int

const (
	// DecisionApply - применить серверное значение.
	DecisionApply Decision = iota
	// DecisionDefer - отложить: по полю идёт незавершённая мутация.
	DecisionDefer
	// DecisionKeepLocal - оставить локальное значение (свежий коммит в grace-окне).
	DecisionKeepLocal
)

// Store - единственный канонический образ заказов в памяти экрана.
// Никакого I/O: стор мутируют только мутатор и резолвер конфликтов.
type Store struct {
	mu     sync.RWMutex
	orders map[uint64]*entities.Order
	logger *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		orders: make(map[uint64]*entities.Order),
		logger: logger,
	}
}

// fieldPaths - индексы полей Order по их json-именам, включая поля
// встроенных структур. Считается один раз при загрузке пакета.
var fieldPaths = buildFieldPaths(reflect.TypeOf(entities.Order{}))

func buildFieldPaths(t reflect.Type) map[string][]int {
	paths := make(map[string][]int)
	var walk func(t reflect.Type, prefix []int)
	walk = func(t reflect.Type, prefix []int) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			idx := append(append([]int{}, prefix...), i)
			if f.Anonymous {
				walk(f.Type, idx)
				continue
			}
			name := jsonName(f)
			if name == "" || name == "-" {
				continue
			}
			paths[name] = idx
		}
	}
	walk(t, nil)
	return paths
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	return tag
}

// OrderFieldValue читает значение одного именованного поля из произвольного
// образа заказа (не обязательно хранящегося в сторе).
func OrderFieldValue(order *entities.Order, field string) (interface{}, bool) {
	path, ok := fieldPaths[field]
	if !ok {
		return nil, false
	}
	return reflect.ValueOf(order).Elem().FieldByIndex(path).Interface(), true
}

// FieldNames возвращает json-имена всех отслеживаемых полей заказа.
func FieldNames() []string {
	names := make([]string, 0, len(fieldPaths))
	for name := range fieldPaths {
		names = append(names, name)
	}
	return names
}

// Get возвращает глубокую копию заказа.
func (s *Store) Get(id uint64) (*entities.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// Has сообщает, загружен ли заказ в стор.
func (s *Store) Has(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.orders[id]
	return ok
}

// Put кладёт (или безусловно перезаписывает) канонический образ заказа.
// Используется при первичной загрузке экрана.
func (s *Store) Put(order *entities.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
}

// Replace применяет полное обновление с сервера, спрашивая решение по каждому
// полю. Возвращает json-имена полей, решение по которым - DecisionDefer либо
// DecisionKeepLocal: их буферизует резолвер.
func (s *Store) Replace(id uint64, fresh *entities.Order, decide func(field string) Decision) (held []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}

	freshCopy := fresh.Clone()
	curVal := reflect.ValueOf(current).Elem()
	freshVal := reflect.ValueOf(freshCopy).Elem()

	for name, path := range fieldPaths {
		switch decide(name) {
		case DecisionApply:
			curVal.FieldByIndex(path).Set(freshVal.FieldByIndex(path))
		default:
			held = append(held, name)
		}
	}
	return held, nil
}

// ApplyField копирует одно именованное поле из src в канонический образ.
// На этом построены откат снимка, слияние серверного ответа и отложенное
// применение буферизованного обновления.
func (s *Store) ApplyField(id uint64, src *entities.Order, field string) error {
	path, ok := fieldPaths[field]
	if !ok {
		return apperrors.NewInvalidInputError("неизвестное поле заказа: %s", field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.orders[id]
	if !found {
		return apperrors.ErrOrderNotFound
	}

	srcCopy := src.Clone()
	reflect.ValueOf(current).Elem().FieldByIndex(path).
		Set(reflect.ValueOf(srcCopy).Elem().FieldByIndex(path))
	return nil
}

// FieldValue читает текущее значение одного поля заказа.
func (s *Store) FieldValue(id uint64, field string) (interface{}, error) {
	path, ok := fieldPaths[field]
	if !ok {
		return nil, apperrors.NewInvalidInputError("неизвестное поле заказа: %s", field)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current, found := s.orders[id]
	if !found {
		return nil, apperrors.ErrOrderNotFound
	}
	return reflect.ValueOf(current.Clone()).Elem().FieldByIndex(path).Interface(), nil
}

// ApplyPatch вливает частичный DTO в канонический образ (shallow-merge
// непустых полей). Возвращает true, если что-то реально изменилось.
func (s *Store) ApplyPatch(id uint64, patch interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return false, apperrors.ErrOrderNotFound
	}
	return utils.ApplyUpdates(current, patch), nil
}

// AppendItem добавляет позицию заказа (обычно с временным ID).
func (s *Store) AppendItem(id uint64, item entities.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	current.Items = append(current.Items, item)
	return nil
}

// RemoveItem убирает позицию по ID. Возвращает удалённую позицию,
// чтобы мутатор мог вернуть её при откате.
func (s *Store) RemoveItem(id uint64, itemID string) (*entities.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}

	idx := current.FindItem(itemID)
	if idx < 0 {
		return nil, apperrors.ErrItemNotFound
	}
	removed := current.Items[idx]
	current.Items = append(current.Items[:idx], current.Items[idx+1:]...)
	return &removed, nil
}

// ReplaceItemID заменяет временный ID позиции на серверный после коммита.
func (s *Store) ReplaceItemID(id uint64, tempID, serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return apperrors.ErrOrderNotFound
	}

	idx := current.FindItem(tempID)
	if idx < 0 {
		return apperrors.ErrItemNotFound
	}
	current.Items[idx].ID = serverID
	return nil
}

// List возвращает копии всех загруженных заказов (для отчётов).
func (s *Store) List() []entities.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]entities.Order, 0, len(s.orders))
	for _, order := range s.orders {
		list = append(list, *order.Clone())
	}
	return list
}
