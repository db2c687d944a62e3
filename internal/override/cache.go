package override

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "order-sync/pkg/errors"

	"go.uber.org/zap"
)

// Cache маскирует серверное значение поля на ограниченное время после
// локальной записи. Нужен для полей, которые бэкенд медленно прокидывает в
// последующие чтения (наблюдалось с delivery_type после назначения логистики).
// Никогда не singleton: экземпляр всегда создаётся и внедряется явно.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool)
	Clear(ctx context.Context, key string) error
}

// Key строит ключ переопределения: "override:<orderId>:<field>".
func Key(entityID uint64, field string) string {
	return fmt.Sprintf("override:%d:%s", entityID, field)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache - внутрипроцессная реализация с ленивым вытеснением на чтении
// и периодической уборкой.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   func() time.Time
	logger  *zap.Logger
}

func NewMemoryCache(logger *zap.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		clock:   time.Now,
		logger:  logger,
	}
}

// WithClock подменяет источник времени (для тестов).
func (c *MemoryCache) WithClock(clock func() time.Time) *MemoryCache {
	c.clock = clock
	return c
}

// Set кладёт значение с абсолютным сроком = now + ttl. Повторный Set по тому
// же ключу заменяет запись. Бесконечный ttl запрещён.
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return apperrors.NewInvalidInputError("переопределение обязано иметь конечный ttl, получено %s", ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.clock().Add(ttl)}
	return nil
}

// Get возвращает значение, только пока now < expiresAt. Просроченная запись
// удаляется на месте.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.clock().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

// Clear - досрочная инвалидация, когда авторитетный рефреш подтвердил то же
// значение: держать маску дольше незачем.
func (c *MemoryCache) Clear(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Sweep убирает все просроченные записи. Возвращает число убранных.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper запускает периодическую уборку до отмены контекста.
func (c *MemoryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.logger.Debug("уборка переопределений", zap.Int("removed", n))
				}
			}
		}
	}()
}

// Len - текущее число записей (включая ещё не убранные просроченные).
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
