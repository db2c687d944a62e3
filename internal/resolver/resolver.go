package resolver

import (
	"reflect"
	"sync"
	"time"

	"order-sync/internal/entities"
	"order-sync/internal/store"

	"go.uber.org/zap"
)

type fieldKey struct {
	entityID uint64
	field    string
}

type committedRecord struct {
	value interface{}
	at    time.Time
}

// Resolver решает, поле за полем, можно ли накатывать пришедшее с сервера
// полное обновление поверх локального состояния. Предотвращает класс багов
// "двойной записи": оптимистичное значение -> мигание устаревшим значением
// из преждевременного рефреша -> правильное значение с опозданием.
type Resolver struct {
	mu       sync.Mutex
	store    *store.Store
	logger   *zap.Logger
	grace    time.Duration
	clock    func() time.Time
	schedule func(d time.Duration, f func())

	inflight  map[fieldKey]int
	committed map[fieldKey]committedRecord
	buffered  map[uint64]*bufferedRefresh
}

// bufferedRefresh - последний отложенный рефреш по заказу и поля,
// которые из него ещё не применены.
type bufferedRefresh struct {
	fresh  *entities.Order
	fields map[string]struct{}
}

func NewResolver(st *store.Store, grace time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:     st,
		logger:    logger,
		grace:     grace,
		clock:     time.Now,
		schedule:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		inflight:  make(map[fieldKey]int),
		committed: make(map[fieldKey]committedRecord),
		buffered:  make(map[uint64]*bufferedRefresh),
	}
}

// WithClock подменяет источник времени и планировщик (для тестов).
func (r *Resolver) WithClock(clock func() time.Time, schedule func(d time.Duration, f func())) *Resolver {
	r.clock = clock
	r.schedule = schedule
	return r
}

// NoteInFlight отмечает, что по полям пошёл сетевой вызов мутации.
func (r *Resolver) NoteInFlight(entityID uint64, fields []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fields {
		r.inflight[fieldKey{entityID, f}]++
	}
}

// NoteResolved отмечает завершение мутации (коммит или откат) и доигрывает
// отложенные рефреши по освободившимся полям.
func (r *Resolver) NoteResolved(entityID uint64, fields []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range fields {
		key := fieldKey{entityID, f}
		if r.inflight[key] > 1 {
			r.inflight[key]--
		} else {
			delete(r.inflight, key)
		}
	}
	r.replayLocked(entityID)
}

// NoteCommitted фиксирует подтверждённое сервером значение поля: в течение
// grace-окна оно локально авторитетно и не перетирается устаревшим рефрешем.
func (r *Resolver) NoteCommitted(entityID uint64, field string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed[fieldKey{entityID, field}] = committedRecord{value: value, at: r.clock()}
}

// OnRefresh принимает полный образ заказа с сервера и применяет его через
// стор с пофиловыми решениями. Отложенные и удержанные поля буферизуются.
func (r *Resolver) OnRefresh(entityID uint64, fresh *entities.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	freshCopy := fresh.Clone()
	var recheck []string

	held, err := r.store.Replace(entityID, fresh, func(field string) store.Decision {
		key := fieldKey{entityID, field}

		if r.inflight[key] > 0 {
			return store.DecisionDefer
		}

		if rec, ok := r.committed[key]; ok {
			if now.Sub(rec.at) < r.grace {
				freshField, _ := store.OrderFieldValue(freshCopy, field)
				if !reflect.DeepEqual(freshField, rec.value) {
					recheck = append(recheck, field)
					return store.DecisionKeepLocal
				}
				// Рефреш подтвердил закоммиченное значение - запись больше не нужна.
				delete(r.committed, key)
				return store.DecisionApply
			}
			delete(r.committed, key)
		}
		return store.DecisionApply
	})
	if err != nil {
		return err
	}

	if len(held) > 0 {
		r.bufferLocked(entityID, fresh, held)
	}

	// Одна повторная проверка после grace-окна для каждого удержанного поля.
	for _, field := range recheck {
		f := field
		r.schedule(r.grace, func() { r.Recheck(entityID, f) })
	}
	return nil
}

// Recheck применяет буферизованное значение поля, если по нему больше нет
// незавершённой мутации и grace-окно истекло.
func (r *Resolver) Recheck(entityID uint64, field string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fieldKey{entityID, field}
	if r.inflight[key] > 0 {
		return
	}
	if rec, ok := r.committed[key]; ok {
		if r.clock().Sub(rec.at) < r.grace {
			return
		}
		delete(r.committed, key)
	}
	r.applyBufferedLocked(entityID, field)
}

func (r *Resolver) bufferLocked(entityID uint64, fresh *entities.Order, fields []string) {
	buf, ok := r.buffered[entityID]
	if !ok {
		buf = &bufferedRefresh{fields: make(map[string]struct{})}
		r.buffered[entityID] = buf
	}
	// Более новый рефреш целиком заменяет буфер: копить устаревшие незачем.
	buf.fresh = fresh.Clone()
	for _, f := range fields {
		buf.fields[f] = struct{}{}
	}
}

func (r *Resolver) replayLocked(entityID uint64) {
	buf, ok := r.buffered[entityID]
	if !ok {
		return
	}
	for field := range buf.fields {
		key := fieldKey{entityID, field}
		if r.inflight[key] > 0 {
			continue
		}
		if rec, recOK := r.committed[key]; recOK && r.clock().Sub(rec.at) < r.grace {
			// Поле только что закоммичено: буфер не применяем сейчас, но и не
			// бросаем - одна перепроверка после grace-окна, как в OnRefresh.
			f := field
			r.schedule(r.grace, func() { r.Recheck(entityID, f) })
			continue
		}
		if err := r.store.ApplyField(entityID, buf.fresh, field); err != nil {
			r.logger.Warn("не удалось доиграть отложенный рефреш",
				zap.Uint64("orderId", entityID), zap.String("field", field), zap.Error(err))
		}
		delete(buf.fields, field)
	}
	if len(buf.fields) == 0 {
		delete(r.buffered, entityID)
	}
}

func (r *Resolver) applyBufferedLocked(entityID uint64, field string) {
	buf, ok := r.buffered[entityID]
	if !ok {
		return
	}
	if _, held := buf.fields[field]; !held {
		return
	}
	if err := r.store.ApplyField(entityID, buf.fresh, field); err != nil {
		r.logger.Warn("не удалось применить буферизованное поле",
			zap.Uint64("orderId", entityID), zap.String("field", field), zap.Error(err))
	}
	delete(buf.fields, field)
	if len(buf.fields) == 0 {
		delete(r.buffered, entityID)
	}
}
