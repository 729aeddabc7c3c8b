package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gridworld/internal/geo"
	"github.com/annel0/gridworld/internal/world"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var got atomic.Int32
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventNeedCluster}}, func(ctx context.Context, ev *Envelope) {
		got.Add(1)
	})
	require.NoError(t, err)

	need, err := NewNeedClusterEnvelope(world.ClusterPos{H: 1, V: 2})
	require.NoError(t, err)
	origin, err := NewOriginChangeEnvelope(geo.OriginChange{})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), need))
	require.NoError(t, bus.Publish(context.Background(), origin))

	assert.Eventually(t, func() bool { return got.Load() == 1 }, time.Second, 5*time.Millisecond,
		"Фильтр пропускает только NeedCluster")

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var got atomic.Int32
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		got.Add(1)
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	ev, err := NewEnvelope("test", "Ping", 5, nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(0), got.Load(), "После отписки события не доставляются")
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	// Шина без цикла рассылки: буфер не освобождается
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, 1),
		capacity:    1,
		done:        make(chan struct{}),
	}

	first, err := NewEnvelope("test", "Low", 1, nil)
	require.NoError(t, err)
	require.NoError(t, mb.Publish(context.Background(), first))

	low, err := NewEnvelope("test", "Low", 1, nil)
	require.NoError(t, err)
	require.NoError(t, mb.Publish(context.Background(), low), "Сброс не является ошибкой")

	stats := mb.Metrics()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped, "Низкий приоритет отбрасывается при заполненном буфере")
	assert.Equal(t, 1, stats.InFlight)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	high, err := NewEnvelope("test", "High", 7, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, mb.Publish(ctx, high), context.Canceled, "Высокий приоритет ждёт места до отмены контекста")
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus(16)

	var got atomic.Int32
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		time.Sleep(10 * time.Millisecond)
		got.Add(1)
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ev, err := NewEnvelope("test", "Ping", 5, i)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	require.NoError(t, bus.Close())
	assert.Equal(t, int32(3), got.Load(), "Close дожидается доставки оставшихся событий")

	ev, err := NewEnvelope("test", "Ping", 5, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, bus.Publish(context.Background(), ev), ErrClosed)
	assert.NoError(t, bus.Close(), "Повторный Close безопасен")
}

func TestEnvelope_Decode(t *testing.T) {
	ev, err := NewOriginChangeEnvelope(geo.OriginChange{
		Old:     geo.Origin{H: 0, V: 0},
		New:     geo.Origin{H: 256, V: -128},
		Version: 3,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, SourceGeo, ev.Source)

	change, err := DecodeOriginChange(ev)
	require.NoError(t, err)
	assert.Equal(t, geo.Origin{H: 256, V: -128}, change.New)
	assert.Equal(t, uint64(3), change.Version)

	_, err = DecodeNeedCluster(ev)
	assert.Error(t, err, "Тип события проверяется")

	ev.EventType = EventNeedCluster
	ev.Payload = []byte("{")
	_, err = DecodeNeedCluster(ev)
	assert.Error(t, err)
}

type emptyWorld struct{}

func (emptyWorld) ClusterFromPosition(world.ClusterPos) *world.Cluster { return nil }

type nopBuilder struct{}

func (nopBuilder) BuildGeometry(*world.Cluster) {}

type nopLimiter struct{}

func (nopLimiter) AddLoadPriority(world.ClusterPos) {}

func TestBridge_RepublishesManagerSignals(t *testing.T) {
	bus := NewMemoryBus(128)
	defer bus.Close()

	opts := geo.DefaultOptions()
	opts.ForceLoadRadius = 1
	opts.Background = false
	mgr := geo.NewManager(opts, emptyWorld{}, nopBuilder{}, nopLimiter{})
	defer mgr.Close()

	ctx := context.Background()
	off := Bridge(ctx, bus, mgr)
	defer off()

	var mu sync.Mutex
	seen := make(map[world.ClusterPos]int)
	_, err := SubscribeNeedCluster(ctx, bus, func(pos world.ClusterPos) {
		mu.Lock()
		seen[pos]++
		mu.Unlock()
	})
	require.NoError(t, err)

	var origins atomic.Int32
	_, err = bus.Subscribe(ctx, Filter{Types: []string{EventOriginChanged}}, func(ctx context.Context, ev *Envelope) {
		if _, err := DecodeOriginChange(ev); err == nil {
			origins.Add(1)
		}
	})
	require.NoError(t, err)

	mgr.UpdateGeoForPosition(ctx, mgl32.Vec3{0, 0, 0})
	require.True(t, mgr.CheckOrigin(mgl32.Vec3{300, 0, 0}))

	// Радиус 1: центр, кольцо 1 и информационное кольцо 2
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 25
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return origins.Load() == 1 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, seen[world.ClusterPos{H: 0, V: 0}])
	assert.Equal(t, 1, seen[world.ClusterPos{H: 2, V: -2}])
	mu.Unlock()
}

func TestMetricsExporter_Sync(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	exp := NewMetricsExporter(bus, reg)

	for i := 0; i < 4; i++ {
		ev, err := NewEnvelope("test", "Ping", 5, i)
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	exp.Sync()
	assert.Equal(t, float64(4), testutil.ToFloat64(exp.published))

	// Повторная синхронизация не удваивает счётчики
	exp.Sync()
	assert.Equal(t, float64(4), testutil.ToFloat64(exp.published))

	exp.Start(10 * time.Millisecond)
	exp.Stop()
}

func TestStartLoggingListener(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	sub, err := StartLoggingListener(bus)
	require.NoError(t, err)
	require.NotNil(t, sub)
	sub.Unsubscribe()
}
