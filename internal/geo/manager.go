package geo

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/signal"
	"github.com/annel0/gridworld/internal/world"
)

// World возвращает загруженный кластер по позиции или nil
type World interface {
	ClusterFromPosition(pos world.ClusterPos) *world.Cluster
}

// GeometryBuilder строит меш кластера и устанавливает его через Cluster.UpdateGeo
type GeometryBuilder interface {
	BuildGeometry(c *world.Cluster)
}

// LoadLimiter принимает кластеры с готовым мешем в очередь на привязку
type LoadLimiter interface {
	AddLoadPriority(pos world.ClusterPos)
}

// Значения по умолчанию
const (
	DefaultForceLoadRadius = 4
	DefaultZombieTime      = 10 * time.Second
	DefaultOriginLimit     = 256
	DefaultOriginSnap      = 128
)

// Options — параметры планировщика подгрузки
type Options struct {
	ForceLoadRadius int           // Радиус колец, для которых запрашивается привязка
	ZombieTime      time.Duration // На сколько продлевается жизнь посещённого кластера
	OriginLimit     float32       // Порог локальной координаты для смены начала
	OriginSnap      int64         // Шаг, к которому округляется новое начало
	Background      bool          // Строить меши в пуле воркеров
	Workers         int           // Размер пула (0 — число CPU)
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		ForceLoadRadius: DefaultForceLoadRadius,
		ZombieTime:      DefaultZombieTime,
		OriginLimit:     DefaultOriginLimit,
		OriginSnap:      DefaultOriginSnap,
		Background:      true,
	}
}

func (o Options) withDefaults() Options {
	if o.ForceLoadRadius < 0 {
		o.ForceLoadRadius = 0
	}
	if o.ZombieTime <= 0 {
		o.ZombieTime = DefaultZombieTime
	}
	if o.OriginLimit <= 0 {
		o.OriginLimit = DefaultOriginLimit
	}
	if o.OriginSnap <= 0 {
		o.OriginSnap = DefaultOriginSnap
	}
	return o
}

// Option настраивает Manager при создании
type Option func(*Manager)

// WithDispatcher задаёт исполнителя задач построения вместо выбранного по Options.Background
func WithDispatcher(d Dispatcher) Option {
	return func(m *Manager) {
		m.dispatcher = d
	}
}

// WithMetrics подключает prometheus-метрики
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTracer задаёт трассировщик OpenTelemetry
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

// Manager — планировщик подгрузки кластеров вокруг наблюдателя.
// Каждый проход обходит кольца вокруг кластера наблюдателя и для каждой позиции
// решает, запросить генерацию, построить меш или передать кластер на привязку.
type Manager struct {
	opts    Options
	world   World
	builder GeometryBuilder
	limiter LoadLimiter

	frame      Frame
	dispatcher Dispatcher
	ownedPool  *WorkerPool
	metrics    *Metrics
	tracer     trace.Tracer
	log        *logging.Logger

	originChanged signal.Signal[OriginChange]
	needCluster   signal.Signal[world.ClusterPos]
}

// NewManager создаёт планировщик. Если Options.Background и исполнитель не задан,
// создаётся собственный пул воркеров, который останавливается в Close.
func NewManager(opts Options, w World, builder GeometryBuilder, limiter LoadLimiter, options ...Option) *Manager {
	m := &Manager{
		opts:    opts.withDefaults(),
		world:   w,
		builder: builder,
		limiter: limiter,
		tracer:  otel.Tracer("github.com/annel0/gridworld/internal/geo"),
		log:     logging.GetGeoLogger(),
	}
	for _, o := range options {
		o(m)
	}

	if m.dispatcher == nil {
		if m.opts.Background {
			m.ownedPool = NewWorkerPool(m.opts.Workers)
			m.dispatcher = m.ownedPool
		} else {
			m.dispatcher = InlineDispatcher{}
		}
	}

	m.log.Info("🗺️ Планировщик подгрузки: радиус=%d, предел=%.0f, шаг=%d, фон=%v",
		m.opts.ForceLoadRadius, m.opts.OriginLimit, m.opts.OriginSnap, m.opts.Background)
	return m
}

// Close останавливает собственный пул воркеров, дожидаясь поставленных задач
func (m *Manager) Close() {
	if m.ownedPool != nil {
		m.ownedPool.Close()
	}
}

// Options возвращает действующие параметры
func (m *Manager) Options() Options {
	return m.opts
}

// Frame возвращает систему координат наблюдателя
func (m *Manager) Frame() *Frame {
	return &m.frame
}

// OriginChanged — сигнал смены начала координат
func (m *Manager) OriginChanged() *signal.Signal[OriginChange] {
	return &m.originChanged
}

// NeedCluster — сигнал о том, что кластер на позиции нужно сгенерировать
func (m *Manager) NeedCluster() *signal.Signal[world.ClusterPos] {
	return &m.needCluster
}

// CheckOrigin переносит начало координат, если наблюдатель ушёл дальше OriginLimit
// по X или Z. Новое начало кратно OriginSnap. Возвращает true, если перенос был.
func (m *Manager) CheckOrigin(local mgl32.Vec3) bool {
	limit := m.opts.OriginLimit
	if mgl32.Abs(local.X()) <= limit && mgl32.Abs(local.Z()) <= limit {
		return false
	}

	o := m.frame.Origin()
	m.SetOrigin(Origin{
		H: snapDown(o.H+int64(local.X()), m.opts.OriginSnap),
		V: snapDown(o.V+int64(local.Z()), m.opts.OriginSnap),
	})
	return true
}

// SetOrigin устанавливает начало координат и оповещает подписчиков
func (m *Manager) SetOrigin(origin Origin) {
	change := m.frame.set(origin)
	m.metrics.incRecenters()
	m.log.Info("🌐 Смена начала координат %s → %s (версия %d)", change.Old, change.New, change.Version)
	m.originChanged.Emit(change)
}

// UpdateGeoForPosition выполняет один проход подгрузки вокруг локальной позиции наблюдателя:
// центральный кластер, кольца 1..R с привязкой и кольца R+1..2R только для генерации.
func (m *Manager) UpdateGeoForPosition(ctx context.Context, local mgl32.Vec3) {
	start := time.Now()
	h, v := m.frame.AbsoluteBlock(local)
	center := world.ClusterPosFromBlock(h, v)

	ctx, span := m.tracer.Start(ctx, "geo.UpdateGeoForPosition", trace.WithAttributes(
		attribute.Int64("cluster.h", center.H),
		attribute.Int64("cluster.v", center.V),
	))
	defer span.End()

	m.ForceClusterLoad(ctx, center, false)

	radius := m.opts.ForceLoadRadius
	for r := 1; r <= 2*radius; r++ {
		if ctx.Err() != nil {
			span.AddEvent("cancelled")
			return
		}
		informational := r > radius
		walkRing(center, r, func(p world.ClusterPos) {
			m.ForceClusterLoad(ctx, p, informational)
		})
	}

	m.metrics.observePass(time.Since(start))
}

// ForceClusterLoad принимает решение для одной позиции.
// Отсутствующий кластер — сигнал NeedCluster. Для информационных позиций на этом всё.
// Иначе: Generated — построение меша, GeometryCreated — передача на привязку,
// остальные статусы не требуют действий.
func (m *Manager) ForceClusterLoad(ctx context.Context, pos world.ClusterPos, informational bool) {
	c := m.world.ClusterFromPosition(pos)
	if c == nil {
		m.metrics.incNeedCluster()
		m.log.Trace("Нужен кластер %s", pos)
		m.needCluster.Emit(pos)
		return
	}
	if informational {
		return
	}

	c.Touch(m.opts.ZombieTime)

	switch c.Status() {
	case world.StatusGeometryCreated:
		m.requestBind(c)
	case world.StatusGenerated:
		if c.BeginGeometry() {
			m.dispatchBuild(ctx, c)
		}
	}
}

// dispatchBuild отправляет построение меша исполнителю. Вызывается только победителем BeginGeometry.
func (m *Manager) dispatchBuild(ctx context.Context, c *world.Cluster) {
	pos := c.Origin()
	m.metrics.buildStarted()

	job := func() {
		defer m.metrics.buildFinished()

		_, span := m.tracer.Start(ctx, "geo.BuildGeometry", trace.WithAttributes(
			attribute.Int64("cluster.h", pos.H),
			attribute.Int64("cluster.v", pos.V),
		))
		defer span.End()

		m.builder.BuildGeometry(c)
		m.requestBind(c)
	}

	// Кластер уже в GeometryPending: отклонённую задачу выполняем здесь же,
	// иначе он останется в этом статусе навсегда.
	if !m.dispatcher.Dispatch(pos, job) {
		m.log.Warn("Пул построения остановлен, меш кластера %s строится синхронно", pos)
		job()
	}
}

// requestBind передаёт кластер ограничителю не более одного раза за цикл
func (m *Manager) requestBind(c *world.Cluster) {
	if !c.RequestBinding() {
		return
	}
	m.metrics.incBindRequests()
	m.limiter.AddLoadPriority(c.Origin())
}
