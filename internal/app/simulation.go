package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/gridworld/internal/api"
	"github.com/annel0/gridworld/internal/config"
	"github.com/annel0/gridworld/internal/eventbus"
	"github.com/annel0/gridworld/internal/geo"
	"github.com/annel0/gridworld/internal/limiter"
	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/mesh"
	"github.com/annel0/gridworld/internal/physics"
	"github.com/annel0/gridworld/internal/world"
	"github.com/annel0/gridworld/internal/world/block"
	"github.com/annel0/gridworld/internal/worldgen"
)

// Observer — наблюдатель, вокруг которого подгружается мир. Позиция хранится
// в локальной системе координат: X — h, Y — высота, Z — v.
type Observer struct {
	Local    mgl32.Vec3
	Velocity mgl32.Vec3 // Блоков в секунду по X и Z
	Collider *physics.BoxCollider
}

// Simulation связывает компоненты подгрузки в один безголовый цикл
type Simulation struct {
	cfg *config.Config
	log *logging.Logger

	Registry  *world.Registry
	Generator *worldgen.Generator
	Builder   *mesh.Builder
	Limiter   *limiter.LoadLimiter
	Manager   *geo.Manager
	Scene     *Scene
	Bus       eventbus.EventBus
	Metrics   *prometheus.Registry

	// mu защищает Observer и ticks от чтения сервером состояния
	mu       sync.RWMutex
	Observer Observer

	exporter  *eventbus.MetricsExporter
	unbridge  func()
	needSub   eventbus.Subscription
	offOrigin func()
	ticks     uint64
}

// New собирает симуляцию по конфигурации
func New(cfg *config.Config) (*Simulation, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	defs := block.NewDefinitions()
	if path := cfg.Generator.Definitions; path != "" {
		ids, err := block.LoadDefinitions(path, defs)
		if err != nil {
			return nil, fmt.Errorf("ошибка загрузки описаний блоков: %w", err)
		}
		logging.Info("🧱 Загружено описаний блоков из %s: %d", path, len(ids))
	}

	s := &Simulation{
		cfg:      cfg,
		log:      logging.GetComponentLogger("app"),
		Registry: world.NewRegistry(block.NewTable(defs)),
		Builder:  mesh.NewBuilder(),
		Scene:    NewScene(reg),
		Bus:      eventbus.NewMemoryBus(1024),
		Metrics:  reg,
		Observer: Observer{
			Local:    mgl32.Vec3{0.5, float32(world.DSize), 0.5},
			Velocity: mgl32.Vec3{4, 0, 1},
			Collider: physics.NewBoxCollider(0.6, 0.6),
		},
	}

	s.Generator = worldgen.New(cfg.GeneratorOptions(), s.Registry)
	s.Limiter = limiter.New(cfg.LimiterOptions(), s.Registry, s.Scene, limiter.NewMetrics(reg))
	s.Manager = geo.NewManager(cfg.GeoOptions(), s.Registry, s.Builder, s.Limiter,
		geo.WithMetrics(geo.NewMetrics(reg)))
	s.exporter = eventbus.NewMetricsExporter(s.Bus, reg)

	// Перенос начала координат сдвигает локальную позицию наблюдателя
	s.offOrigin = s.Manager.OriginChanged().Subscribe(func(change geo.OriginChange) {
		s.Observer.Local = s.Observer.Local.Add(change.Shift())
	})

	// Запросы кластеров идут через шину: генерация происходит в одном из следующих циклов
	s.unbridge = eventbus.Bridge(context.Background(), s.Bus, s.Manager)
	sub, err := eventbus.SubscribeNeedCluster(context.Background(), s.Bus, func(pos world.ClusterPos) {
		s.Generator.Enqueue(pos)
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.needSub = sub

	if _, err := eventbus.StartLoggingListener(s.Bus); err != nil {
		s.log.Warn("Не удалось подключить логирование событий: %v", err)
	}

	return s, nil
}

// Tick выполняет один шаг симуляции длительностью dt
func (s *Simulation) Tick(ctx context.Context, now time.Time, dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks++
	s.move(dt)

	s.Manager.CheckOrigin(s.Observer.Local)
	s.Manager.UpdateGeoForPosition(ctx, s.Observer.Local)

	s.Limiter.SetFocus(s.observerCluster())
	s.Limiter.Process(now)

	for _, c := range s.Registry.Age(dt) {
		s.Scene.Unbind(c.Origin())
		s.log.Debug("♻️ Кластер %s выгружен", c.Origin())
	}
}

// ObserverCluster возвращает кластер, над которым стоит наблюдатель
func (s *Simulation) ObserverCluster() world.ClusterPos {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observerCluster()
}

func (s *Simulation) observerCluster() world.ClusterPos {
	h, v := s.Manager.Frame().AbsoluteBlock(s.Observer.Local)
	return world.ClusterPosFromBlock(h, v)
}

// move сдвигает наблюдателя и опускает/поднимает его на поверхность.
// Пока поверхность под новой позицией не загружена, наблюдатель ждёт на месте.
// Упираясь в уступ, он поворачивает на 90°.
func (s *Simulation) move(dt time.Duration) {
	o := &s.Observer
	step := o.Velocity.Mul(float32(dt.Seconds()))
	next := mgl32.Vec3{o.Local.X() + step.X(), o.Local.Y(), o.Local.Z() + step.Z()}

	h, v := s.Manager.Frame().ToAbsolute(next)
	surface, ok := physics.SurfaceUnder(mgl64.Vec2{h, v}, o.Collider, s.Registry.DropDepth)
	if !ok {
		return
	}

	y, blocked := physics.Step(o.Local.Y(), surface, dt)
	if blocked {
		o.Velocity = mgl32.Vec3{-o.Velocity.Z(), 0, o.Velocity.X()}
		return
	}
	o.Local = mgl32.Vec3{next.X(), y, next.Z()}
}

// Run запускает генератор, экспорт метрик и основной цикл до отмены ctx
func (s *Simulation) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	s.exporter.Start(time.Second)
	defer s.exporter.Stop()

	eg.Go(func() error { return s.Generator.Run(ctx) })

	status := api.NewStatusServer(api.Config{
		Addr:     s.cfg.Metrics.GetAddr(),
		Source:   s,
		Registry: s.Metrics,
	})
	eg.Go(status.Start)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return status.Shutdown(shutdownCtx)
	})

	eg.Go(func() error { return s.loop(ctx) })

	return eg.Wait()
}

func (s *Simulation) loop(ctx context.Context) error {
	interval := s.cfg.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	s.log.Info("▶️ Симуляция запущена: такт %v", interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.logStats()
			return nil
		case now := <-ticker.C:
			s.Tick(ctx, now, now.Sub(last))
			last = now
		case <-statsTicker.C:
			s.logStats()
		}
	}
}

// StreamStats возвращает снимок состояния подгрузки
func (s *Simulation) StreamStats() api.StreamStats {
	s.mu.RLock()
	local := s.Observer.Local
	ticks := s.ticks
	cluster := s.observerCluster()
	s.mu.RUnlock()

	frame := s.Manager.Frame()
	gen := s.Generator.Stats()
	build := s.Builder.Stats()
	bus := s.Bus.Metrics()
	return api.StreamStats{
		Tick:            ticks,
		Observer:        [3]float32{local.X(), local.Y(), local.Z()},
		ObserverCluster: cluster.String(),
		Origin:          frame.Origin().String(),
		OriginVersion:   frame.Version(),
		Clusters:        s.Registry.Len(),
		Generated:       gen.Generated,
		GenDropped:      gen.Dropped,
		GenPending:      gen.Pending,
		MeshesBuilt:     build.Built,
		MeshesDropped:   build.Discarded,
		BindQueue:       s.Limiter.Len(),
		BoundClusters:   s.Scene.Len(),
		BoundVertices:   s.Scene.Vertices(),
		EventsDropped:   bus.Dropped,
		EventsInFlight:  bus.InFlight,
	}
}

// ClusterFromPosition возвращает загруженный кластер или nil
func (s *Simulation) ClusterFromPosition(pos world.ClusterPos) *world.Cluster {
	return s.Registry.ClusterFromPosition(pos)
}

func (s *Simulation) logStats() {
	st := s.StreamStats()
	s.log.Info("📊 Такт %d: наблюдатель %v над %s, начало %s",
		st.Tick, st.Observer, st.ObserverCluster, st.Origin)
	s.log.Info("📊 Кластеров=%d, сгенерировано=%d (сброшено=%d, в очереди=%d), мешей=%d (отброшено=%d)",
		st.Clusters, st.Generated, st.GenDropped, st.GenPending, st.MeshesBuilt, st.MeshesDropped)
	s.log.Info("📊 Привязано=%d (вершин=%d), ожидают привязки=%d, событий сброшено=%d",
		st.BoundClusters, st.BoundVertices, st.BindQueue, st.EventsDropped)
}

// Close останавливает пул мешей и шину событий
func (s *Simulation) Close() {
	if s.offOrigin != nil {
		s.offOrigin()
	}
	if s.unbridge != nil {
		s.unbridge()
	}
	if s.needSub != nil {
		s.needSub.Unsubscribe()
	}
	s.Manager.Close()
	if err := s.Bus.Close(); err != nil {
		s.log.Warn("Ошибка закрытия шины событий: %v", err)
	}
}
