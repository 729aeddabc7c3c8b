package limiter

import (
	"container/heap"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/world"
)

// World возвращает загруженный кластер по позиции или nil
type World interface {
	ClusterFromPosition(pos world.ClusterPos) *world.Cluster
}

// Binder передаёт готовый меш кластера рендереру
type Binder interface {
	Bind(c *world.Cluster) error
}

// BinderFunc позволяет использовать функцию как Binder
type BinderFunc func(c *world.Cluster) error

// Bind вызывает f(c)
func (f BinderFunc) Bind(c *world.Cluster) error { return f(c) }

// Options — параметры ограничителя
type Options struct {
	BindsPerSecond float64 // Средняя скорость привязки
	Burst          int     // Сколько привязок можно сделать разом
}

// Metrics — метрики ограничителя
type Metrics struct {
	bound    prometheus.Counter
	failures prometheus.Counter
	queued   prometheus.Gauge
}

// NewMetrics создаёт метрики ограничителя и регистрирует их в reg (nil — без регистрации)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		bound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridworld",
			Subsystem: "limiter",
			Name:      "bound_total",
			Help:      "Number of cluster meshes bound",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridworld",
			Subsystem: "limiter",
			Name:      "bind_failures_total",
			Help:      "Number of failed bind attempts",
		}),
		queued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridworld",
			Subsystem: "limiter",
			Name:      "queued",
			Help:      "Clusters waiting to be bound",
		}),
	}
}

// LoadLimiter — очередь кластеров на привязку. Ближайшие к наблюдателю кластеры
// привязываются первыми, но не чаще, чем разрешает rate.Limiter.
type LoadLimiter struct {
	mu      sync.Mutex
	queue   priorityQueue
	queued  map[world.ClusterPos]struct{}
	limiter *rate.Limiter

	world   World
	binder  Binder
	metrics *Metrics
	log     *logging.Logger
}

// New создаёт ограничитель. binder == nil означает привязку без внешнего действия.
func New(opts Options, w World, binder Binder, metrics *Metrics) *LoadLimiter {
	if opts.BindsPerSecond <= 0 {
		opts.BindsPerSecond = 64
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if binder == nil {
		binder = BinderFunc(func(*world.Cluster) error { return nil })
	}

	return &LoadLimiter{
		queued:  make(map[world.ClusterPos]struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.BindsPerSecond), opts.Burst),
		world:   w,
		binder:  binder,
		metrics: metrics,
		log:     logging.GetLimiterLogger(),
	}
}

// AddLoadPriority ставит кластер в очередь на привязку; повторная постановка игнорируется
func (l *LoadLimiter) AddLoadPriority(pos world.ClusterPos) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.queued[pos]; ok {
		return
	}
	l.queued[pos] = struct{}{}
	heap.Push(&l.queue, pos)
	l.setQueuedGauge()
}

// SetFocus задаёт кластер наблюдателя, от которого считаются расстояния
func (l *LoadLimiter) SetFocus(pos world.ClusterPos) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.queue.focus == pos {
		return
	}
	l.queue.focus = pos
	heap.Init(&l.queue)
}

// Len возвращает длину очереди
func (l *LoadLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Process привязывает ближайшие кластеры, пока позволяет бюджет, и возвращает их число.
// Кластеры, которые выгружены или снова стали «грязными», пропускаются без расхода бюджета.
// Ошибка привязки возвращает кластер в очередь.
func (l *LoadLimiter) Process(now time.Time) int {
	var (
		bound  int
		failed []world.ClusterPos
	)

	for {
		l.mu.Lock()
		if l.queue.Len() == 0 {
			l.mu.Unlock()
			break
		}
		pos := l.queue.items[0]
		c := l.world.ClusterFromPosition(pos)
		stale := c == nil || c.Status() != world.StatusGeometryCreated || !c.NeedsBinding()
		if !stale && !l.limiter.AllowN(now, 1) {
			l.mu.Unlock()
			break
		}
		heap.Pop(&l.queue)
		delete(l.queued, pos)
		l.setQueuedGauge()
		l.mu.Unlock()

		if stale {
			l.log.Trace("Кластер %s больше не ждёт привязки", pos)
			continue
		}

		if err := l.binder.Bind(c); err != nil {
			l.log.Warn("⚠️ Ошибка привязки кластера %s: %v", pos, err)
			if l.metrics != nil {
				l.metrics.failures.Inc()
			}
			failed = append(failed, pos)
			continue
		}

		if c.FinalizeBind() {
			bound++
			if l.metrics != nil {
				l.metrics.bound.Inc()
			}
		}
	}

	for _, pos := range failed {
		l.AddLoadPriority(pos)
	}
	return bound
}

func (l *LoadLimiter) setQueuedGauge() {
	if l.metrics != nil {
		l.metrics.queued.Set(float64(l.queue.Len()))
	}
}

// priorityQueue — куча позиций по расстоянию до фокуса
type priorityQueue struct {
	items []world.ClusterPos
	focus world.ClusterPos
}

func (q priorityQueue) Len() int { return len(q.items) }

func (q priorityQueue) Less(i, j int) bool {
	di := q.items[i].DistanceSq(q.focus)
	dj := q.items[j].DistanceSq(q.focus)
	if di != dj {
		return di < dj
	}
	return q.items[i].Less(q.items[j])
}

func (q priorityQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *priorityQueue) Push(x any) { q.items = append(q.items, x.(world.ClusterPos)) }

func (q *priorityQueue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}
