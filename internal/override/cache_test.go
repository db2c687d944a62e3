package override

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock - управляемое время, чтобы не спать в тестах.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCache() (*MemoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryCache(zap.NewNop()).WithClock(clock.Now), clock
}

func TestKey(t *testing.T) {
	assert.Equal(t, "override:42:delivery_type", Key(42, "delivery_type"))
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	cache, clock := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, Key(42, "delivery_type"), "D2B", 60*time.Second))

	// Через 10 секунд маска ещё действует.
	clock.Advance(10 * time.Second)
	value, ok := cache.Get(ctx, Key(42, "delivery_type"))
	require.True(t, ok)
	assert.Equal(t, "D2B", value)

	// Через 61 секунду от записи - уже нет.
	clock.Advance(51 * time.Second)
	_, ok = cache.Get(ctx, Key(42, "delivery_type"))
	assert.False(t, ok, "просроченное переопределение не должно отдаваться")
	assert.Equal(t, 0, cache.Len(), "ленивое вытеснение удаляет запись")
}

func TestMemoryCache_ExactBoundary(t *testing.T) {
	cache, clock := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))

	// now == expiresAt считается просроченным.
	clock.Advance(time.Minute)
	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_SetReplaces(t *testing.T) {
	cache, clock := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "D2B", time.Minute))
	clock.Advance(50 * time.Second)

	// Повторный Set перезапускает срок с нового значения.
	require.NoError(t, cache.Set(ctx, "k", "D2D", time.Minute))
	clock.Advance(30 * time.Second)

	value, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "D2D", value)
}

func TestMemoryCache_RejectsInfiniteTTL(t *testing.T) {
	cache, _ := newTestCache()
	ctx := context.Background()

	assert.Error(t, cache.Set(ctx, "k", "v", 0))
	assert.Error(t, cache.Set(ctx, "k", "v", -time.Second))
	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_Clear(t *testing.T) {
	cache, _ := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, cache.Clear(ctx, "k"))

	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
	// Clear по несуществующему ключу не ошибка.
	assert.NoError(t, cache.Clear(ctx, "нет такого"))
}

func TestMemoryCache_Sweep(t *testing.T) {
	cache, clock := newTestCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", "1", 10*time.Second))
	require.NoError(t, cache.Set(ctx, "b", "2", 30*time.Second))
	require.NoError(t, cache.Set(ctx, "c", "3", time.Minute))

	clock.Advance(30 * time.Second)
	assert.Equal(t, 2, cache.Sweep(), "a и b просрочены, c жив")
	assert.Equal(t, 1, cache.Len())

	value, ok := cache.Get(ctx, "c")
	require.True(t, ok)
	assert.Equal(t, "3", value)
}
