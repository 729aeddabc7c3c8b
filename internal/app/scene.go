package app

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/annel0/gridworld/internal/world"
)

// Scene — безголовая замена графической сцены: учитывает привязанные меши кластеров.
// Реализует limiter.Binder.
type Scene struct {
	mu       sync.Mutex
	bound    map[world.ClusterPos]int // позиция -> число вершин
	vertices int

	clusters prometheus.Gauge
	verts    prometheus.Gauge
}

// NewScene создаёт сцену и регистрирует её метрики в reg (nil — без регистрации)
func NewScene(reg prometheus.Registerer) *Scene {
	factory := promauto.With(reg)
	return &Scene{
		bound: make(map[world.ClusterPos]int),
		clusters: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridworld",
			Subsystem: "scene",
			Name:      "clusters",
			Help:      "Количество кластеров с привязанным мешем.",
		}),
		verts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridworld",
			Subsystem: "scene",
			Name:      "vertices",
			Help:      "Суммарное число вершин привязанных мешей.",
		}),
	}
}

// Bind привязывает текущий меш кластера. Повторная привязка заменяет прежний меш.
func (s *Scene) Bind(c *world.Cluster) error {
	geo := c.Geometry()
	if geo == nil {
		return fmt.Errorf("кластер %s не имеет меша", c.Origin())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vertices -= s.bound[c.Origin()]
	s.bound[c.Origin()] = geo.VertexCount()
	s.vertices += geo.VertexCount()
	s.updateGauges()
	return nil
}

// Unbind убирает меш кластера со сцены
func (s *Scene) Unbind(pos world.ClusterPos) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.bound[pos]; ok {
		s.vertices -= n
		delete(s.bound, pos)
		s.updateGauges()
	}
}

// Len возвращает число привязанных кластеров
func (s *Scene) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bound)
}

// Vertices возвращает суммарное число вершин
func (s *Scene) Vertices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vertices
}

func (s *Scene) updateGauges() {
	s.clusters.Set(float64(len(s.bound)))
	s.verts.Set(float64(s.vertices))
}
