package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/middleware"
	"github.com/annel0/gridworld/internal/world"
)

// StreamStats — снимок состояния подгрузки для /api/stats
type StreamStats struct {
	Tick            uint64     `json:"tick"`
	Observer        [3]float32 `json:"observer"`
	ObserverCluster string     `json:"observer_cluster"`
	Origin          string     `json:"origin"`
	OriginVersion   uint64     `json:"origin_version"`

	Clusters       int    `json:"clusters"`
	Generated      uint64 `json:"generated"`
	GenDropped     uint64 `json:"generator_dropped"`
	GenPending     int    `json:"generator_pending"`
	MeshesBuilt    uint64 `json:"meshes_built"`
	MeshesDropped  uint64 `json:"meshes_discarded"`
	BindQueue      int    `json:"bind_queue"`
	BoundClusters  int    `json:"bound_clusters"`
	BoundVertices  int    `json:"bound_vertices"`
	EventsDropped  uint64 `json:"events_dropped"`
	EventsInFlight int    `json:"events_inflight"`
}

// StatusSource отдаёт состояние подгрузки
type StatusSource interface {
	StreamStats() StreamStats
	ClusterFromPosition(pos world.ClusterPos) *world.Cluster
}

// ClusterInfo описывает кластер в ответе /api/clusters/:h/:v
type ClusterInfo struct {
	H            int64   `json:"h"`
	V            int64   `json:"v"`
	Status       string  `json:"status"`
	NeedsBinding bool    `json:"needs_binding"`
	Cycle        uint64  `json:"cycle"`
	Vertices     int     `json:"vertices"`
	AliveSeconds float64 `json:"alive_seconds"`
}

// GenericResponse общий формат ответа API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Config содержит конфигурацию сервера состояния
type Config struct {
	Addr     string               // адрес для запуска сервера
	Source   StatusSource         // источник состояния подгрузки
	Registry *prometheus.Registry // регистр метрик; отдаётся на /metrics
}

// StatusServer — HTTP-сервер только для чтения: здоровье, метрики и состояние подгрузки
type StatusServer struct {
	router  *gin.Engine
	server  *http.Server
	source  StatusSource
	metrics *ServerMetrics
	log     *logging.Logger
}

// NewStatusServer создает сервер состояния
func NewStatusServer(config Config) *StatusServer {
	if config.Addr == "" {
		config.Addr = ":2112"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(middleware.NewRequestLogger().Handler())
	router.Use(otelgin.Middleware("status_api"))

	promMw := middleware.NewPrometheusMiddleware("status_api", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	s := &StatusServer{
		router:  router,
		source:  config.Source,
		metrics: NewServerMetrics(),
		log:     logging.GetComponentLogger("http"),
	}
	s.server = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *StatusServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/clusters/:h/:v", s.handleCluster)
	}
}

// Handler возвращает http.Handler сервера
func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// Start запускает сервер и блокируется до Shutdown
func (s *StatusServer) Start() error {
	s.log.Info("📈 Сервер состояния на http://localhost%s (/metrics, /health, /api/stats)", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("сервер состояния: %w", err)
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь текущих запросов
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth проверка состояния сервера
func (s *StatusServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": s.metrics.GetUptime(),
		"time":   time.Now().Unix(),
	})
}

// handleStats возвращает статистику подгрузки и процесса
func (s *StatusServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	if s.source != nil {
		stats["stream"] = s.source.StreamStats()
	}

	process := map[string]interface{}{
		"uptime":      s.metrics.GetUptime(),
		"server_time": time.Now().Unix(),
	}
	if cpu, err := s.metrics.GetCPUUsage(); err == nil {
		process["cpu_percent"] = fmt.Sprintf("%.2f", cpu)
	}
	if rss, err := s.metrics.GetRSS(); err == nil {
		process["rss_mb"] = fmt.Sprintf("%.2f", rss)
	}
	stats["process"] = process
	stats["memory_details"] = s.metrics.GetDetailedMemoryStats()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data:    stats,
	})
}

// handleCluster возвращает состояние кластера по позиции
func (s *StatusServer) handleCluster(c *gin.Context) {
	h, errH := strconv.ParseInt(c.Param("h"), 10, 64)
	v, errV := strconv.ParseInt(c.Param("v"), 10, 64)
	if errH != nil || errV != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Координаты кластера должны быть целыми числами",
		})
		return
	}

	pos := world.ClusterPos{H: h, V: v}
	var cluster *world.Cluster
	if s.source != nil {
		cluster = s.source.ClusterFromPosition(pos)
	}
	if cluster == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Кластер %s не загружен", pos),
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data:    describeCluster(cluster),
	})
}

func describeCluster(c *world.Cluster) ClusterInfo {
	info := ClusterInfo{
		H:            c.Origin().H,
		V:            c.Origin().V,
		Status:       c.Status().String(),
		NeedsBinding: c.NeedsBinding(),
		Cycle:        c.Cycle(),
		AliveSeconds: c.AliveFor().Seconds(),
	}
	if geo := c.Geometry(); geo != nil {
		info.Vertices = geo.VertexCount()
	}
	return info
}
