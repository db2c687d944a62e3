package resolver

import (
	"testing"
	"time"

	"order-sync/internal/entities"
	"order-sync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

// scheduled собирает отложенные задачи вместо реальных таймеров.
type scheduled struct {
	delays []time.Duration
	funcs  []func()
}

func (s *scheduled) add(d time.Duration, f func()) {
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
}

func (s *scheduled) runAll() {
	funcs := s.funcs
	s.funcs = nil
	s.delays = nil
	for _, f := range funcs {
		f()
	}
}

func newTestResolver(t *testing.T) (*Resolver, *store.Store, *fakeClock, *scheduled) {
	t.Helper()
	st := store.NewStore(zap.NewNop())
	st.Put(baseOrder())
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	sched := &scheduled{}
	r := NewResolver(st, 5*time.Second, zap.NewNop()).WithClock(clock.Now, sched.add)
	return r, st, clock, sched
}

func baseOrder() *entities.Order {
	return &entities.Order{
		ID:              1,
		Code:            "ORD-0001",
		CustomerName:    "Суреш Тапа",
		StatusID:        1,
		FulfillmentType: entities.FulfillmentInsideValley,
		TotalAmount:     1200,
	}
}

func freshOrder(mutate func(*entities.Order)) *entities.Order {
	order := baseOrder()
	if mutate != nil {
		mutate(order)
	}
	return order
}

func TestResolver_AppliesWhenNothingPending(t *testing.T) {
	r, st, _, _ := newTestResolver(t)

	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) {
		o.PaidAmount = 300
		o.StatusID = 2
	})))

	order, err := st.Get(1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), order.PaidAmount)
	assert.Equal(t, uint64(2), order.StatusID)
}

func TestResolver_DefersFieldWithInFlightMutation(t *testing.T) {
	r, st, _, _ := newTestResolver(t)

	// Пользователь правит paid_amount, вызов ещё в полёте.
	st.ApplyField(1, freshOrder(func(o *entities.Order) { o.PaidAmount = 500 }), "paid_amount")
	r.NoteInFlight(1, []string{"paid_amount"})

	// Рефреш несёт устаревшее paid_amount и свежий status_id.
	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) {
		o.PaidAmount = 0
		o.StatusID = 2
	})))

	order, _ := st.Get(1)
	assert.Equal(t, int64(500), order.PaidAmount, "поле в полёте не перетирается")
	assert.Equal(t, uint64(2), order.StatusID, "остальные поля применяются сразу")

	// Мутация завершилась - отложенное поле доигрывается из буфера.
	r.NoteResolved(1, []string{"paid_amount"})
	order, _ = st.Get(1)
	assert.Equal(t, int64(0), order.PaidAmount)
}

func TestResolver_GraceWindowKeepsCommittedValue(t *testing.T) {
	r, st, clock, sched := newTestResolver(t)

	// Коммит только что подтвердил paid_amount=500.
	st.ApplyField(1, freshOrder(func(o *entities.Order) { o.PaidAmount = 500 }), "paid_amount")
	r.NoteCommitted(1, "paid_amount", int64(500))

	// Через 2 секунды приходит рефреш со старым значением: сервер ещё не
	// прокинул запись в чтения.
	clock.Advance(2 * time.Second)
	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) {
		o.PaidAmount = 0
	})))

	order, _ := st.Get(1)
	assert.Equal(t, int64(500), order.PaidAmount, "внутри grace-окна локальное значение держится")
	require.Len(t, sched.delays, 1, "запланирована ровно одна повторная проверка")
	assert.Equal(t, 5*time.Second, sched.delays[0])

	// После истечения окна повторная проверка применяет буферизованное значение.
	clock.Advance(5 * time.Second)
	sched.runAll()
	order, _ = st.Get(1)
	assert.Equal(t, int64(0), order.PaidAmount)
}

func TestResolver_RefreshConfirmingCommitAppliesAndForgets(t *testing.T) {
	r, st, clock, sched := newTestResolver(t)

	st.ApplyField(1, freshOrder(func(o *entities.Order) { o.PaidAmount = 500 }), "paid_amount")
	r.NoteCommitted(1, "paid_amount", int64(500))

	clock.Advance(time.Second)
	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) {
		o.PaidAmount = 500
	})))

	order, _ := st.Get(1)
	assert.Equal(t, int64(500), order.PaidAmount)
	assert.Empty(t, sched.delays, "совпадение значений не требует перепроверки")

	// Запись о коммите стёрта: следующий рефреш с другим значением применяется.
	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) {
		o.PaidAmount = 700
	})))
	order, _ = st.Get(1)
	assert.Equal(t, int64(700), order.PaidAmount)
}

func TestResolver_ExpiredGraceWindowApplies(t *testing.T) {
	r, st, clock, _ := newTestResolver(t)

	st.ApplyField(1, freshOrder(func(o *entities.Order) { o.PaidAmount = 500 }), "paid_amount")
	r.NoteCommitted(1, "paid_amount", int64(500))

	// Окно истекло: рефреш снова авторитетен, даже если значение другое.
	clock.Advance(6 * time.Second)
	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) {
		o.PaidAmount = 0
	})))

	order, _ := st.Get(1)
	assert.Equal(t, int64(0), order.PaidAmount)
}

func TestResolver_NewerRefreshReplacesBuffer(t *testing.T) {
	r, st, _, _ := newTestResolver(t)

	r.NoteInFlight(1, []string{"paid_amount"})

	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) { o.PaidAmount = 100 })))
	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) { o.PaidAmount = 200 })))

	// Доигрывается только последний буферизованный рефреш.
	r.NoteResolved(1, []string{"paid_amount"})
	order, _ := st.Get(1)
	assert.Equal(t, int64(200), order.PaidAmount)
}

func TestResolver_RecheckSkipsWhileInFlight(t *testing.T) {
	r, st, clock, sched := newTestResolver(t)

	st.ApplyField(1, freshOrder(func(o *entities.Order) { o.PaidAmount = 500 }), "paid_amount")
	r.NoteCommitted(1, "paid_amount", int64(500))

	clock.Advance(time.Second)
	require.NoError(t, r.OnRefresh(1, freshOrder(func(o *entities.Order) { o.PaidAmount = 0 })))
	require.Len(t, sched.funcs, 1)

	// К моменту перепроверки поле снова занято новой мутацией.
	r.NoteInFlight(1, []string{"paid_amount"})
	clock.Advance(10 * time.Second)
	sched.runAll()

	order, _ := st.Get(1)
	assert.Equal(t, int64(500), order.PaidAmount, "перепроверка не трогает поле с вызовом в полёте")
}
