package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SearchFunc выполняет сам удалённый поиск по тексту.
type SearchFunc func(ctx context.Context, text string)

// Debouncer превращает поток нажатий клавиш в ограниченный поток удалённых
// запросов: срабатывает только последний текст после паузы в наборе.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	minLen   int
	search   SearchFunc
	logger   *zap.Logger

	// seq растёт на каждом срабатывании: обработчик результата обязан
	// проверить, что он всё ещё последний, прежде чем что-то применять.
	seq uint64
}

func NewDebouncer(interval time.Duration, minLen int, search SearchFunc, logger *zap.Logger) *Debouncer {
	return &Debouncer{
		interval: interval,
		minLen:   minLen,
		search:   search,
		logger:   logger,
	}
}

// OnInput регистрирует новый текст. Прежний отложенный запрос отменяется
// целиком: из серии набора выстрелит только самый свежий текст. Текст короче
// минимума подавляется.
func (d *Debouncer) OnInput(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < d.minLen {
		return
	}

	d.timer = time.AfterFunc(d.interval, func() {
		d.fire(trimmed)
	})
}

// Cancel отменяет отложенный запрос (уход с экрана).
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(text string) {
	d.mu.Lock()
	d.seq++
	d.mu.Unlock()

	d.logger.Debug("debounce сработал", zap.String("text", text))
	d.search(context.Background(), text)
}

// Seq возвращает номер последнего срабатывания. Обработчики асинхронных
// результатов сверяются с ним перед применением.
func (d *Debouncer) Seq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}
