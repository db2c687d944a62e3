package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"order-sync/internal/entities"

	"go.uber.org/zap"
)

// BranchQueryFunc - удалённый запрос справочника филиалов.
type BranchQueryFunc func(ctx context.Context, name, area string) ([]entities.Branch, error)

// BranchResultsFunc получает отфильтрованный список. Вызывается только для
// самого свежего запроса: устаревшие ответы отбрасываются молча.
type BranchResultsFunc func(branches []entities.Branch)

// DualFilter - вариант поиска с двумя независимыми debounce-полями
// (название филиала и зона покрытия). Запрос уходит, когда хотя бы одно поле
// достигло минимальной длины; результат дофильтровывается на клиенте по
// обоим предикатам.
type DualFilter struct {
	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	minLen   int
	query    BranchQueryFunc
	results  BranchResultsFunc
	logger   *zap.Logger

	name string
	area string
	seq  uint64
}

func NewDualFilter(interval time.Duration, minLen int, query BranchQueryFunc, results BranchResultsFunc, logger *zap.Logger) *DualFilter {
	return &DualFilter{
		interval: interval,
		minLen:   minLen,
		query:    query,
		results:  results,
		logger:   logger,
	}
}

// OnNameInput регистрирует набор в поле названия филиала.
func (f *DualFilter) OnNameInput(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name = strings.TrimSpace(text)
	f.restartLocked()
}

// OnAreaInput регистрирует набор в поле зоны покрытия.
func (f *DualFilter) OnAreaInput(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.area = strings.TrimSpace(text)
	f.restartLocked()
}

// Cancel отменяет отложенный запрос.
func (f *DualFilter) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *DualFilter) restartLocked() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if !f.eligibleLocked() {
		return
	}
	f.timer = time.AfterFunc(f.interval, f.fire)
}

// eligibleLocked: запрос допустим, когда хотя бы один фильтр дорос до минимума.
func (f *DualFilter) eligibleLocked() bool {
	return len([]rune(f.name)) >= f.minLen || len([]rune(f.area)) >= f.minLen
}

func (f *DualFilter) fire() {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	name, area := f.name, f.area

	// В запрос уходят только доросшие до минимума фильтры.
	queryName, queryArea := name, area
	if len([]rune(queryName)) < f.minLen {
		queryName = ""
	}
	if len([]rune(queryArea)) < f.minLen {
		queryArea = ""
	}
	f.mu.Unlock()

	branches, err := f.query(context.Background(), queryName, queryArea)
	if err != nil {
		f.logger.Warn("поиск филиалов не удался",
			zap.String("name", queryName), zap.String("area", queryArea), zap.Error(err))
		return
	}

	f.mu.Lock()
	stale := seq != f.seq
	f.mu.Unlock()
	if stale {
		// Пока ждали ответ, пользователь набрал новое - этот результат уже никому не нужен.
		return
	}

	f.results(FilterBranches(branches, name, area))
}

// FilterBranches дофильтровывает список по обоим предикатам (без учёта регистра).
func FilterBranches(branches []entities.Branch, name, area string) []entities.Branch {
	name = strings.ToLower(name)
	area = strings.ToLower(area)

	filtered := make([]entities.Branch, 0, len(branches))
	for _, b := range branches {
		if name != "" && !strings.Contains(strings.ToLower(b.Name), name) {
			continue
		}
		if area != "" && !strings.Contains(strings.ToLower(b.CoveredArea), area) {
			continue
		}
		filtered = append(filtered, b)
	}
	return filtered
}
