package worldgen

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/world"
	"github.com/annel0/gridworld/internal/world/block"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeMountains
)

// Пороги шума биомов
const (
	DesertMax     = 0.35 // Ниже — пустыня
	MountainStart = 0.65 // Выше — горы
)

// Options — параметры генератора мира
type Options struct {
	Seed       int64
	Workers    int           // Число воркеров в Run
	QueueSize  int           // Ёмкость очереди запросов
	NoiseScale float64       // Масштаб шума высот
	BiomeScale float64       // Масштаб шума биомов
	MinHeight  float64       // Минимальная высота поверхности в блоках
	MaxHeight  float64       // Максимальная высота поверхности в блоках
	SeaLevel   int           // До этой глубины пустые ячейки заливаются водой
	Lifetime   time.Duration // Начальное время жизни нового кластера
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		Seed:       1337,
		Workers:    2,
		QueueSize:  1024,
		NoiseScale: 0.02,
		BiomeScale: 0.005,
		MinHeight:  4,
		MaxHeight:  24,
		SeaLevel:   10,
		Lifetime:   10 * time.Second,
	}
}

// Stats содержит статистику генератора
type Stats struct {
	Generated uint64
	Dropped   uint64
	Pending   int
}

// Generator генерирует кластеры по запросу и добавляет их в реестр
type Generator struct {
	opts   Options
	reg    *world.Registry
	height *Noise
	biome  *Noise
	log    *logging.Logger

	mu      sync.Mutex
	pending map[world.ClusterPos]struct{}
	queue   chan world.ClusterPos

	generated atomic.Uint64
	dropped   atomic.Uint64
}

// New создаёт генератор поверх реестра
func New(opts Options, reg *world.Registry) *Generator {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.NoiseScale <= 0 {
		opts.NoiseScale = def.NoiseScale
	}
	if opts.BiomeScale <= 0 {
		opts.BiomeScale = def.BiomeScale
	}
	if opts.MaxHeight <= opts.MinHeight {
		opts.MinHeight, opts.MaxHeight = def.MinHeight, def.MaxHeight
	}
	opts.MinHeight = math.Max(opts.MinHeight, 1)
	opts.MaxHeight = math.Min(opts.MaxHeight, world.DSize-2)
	if opts.Lifetime <= 0 {
		opts.Lifetime = def.Lifetime
	}

	return &Generator{
		opts:    opts,
		reg:     reg,
		height:  NewNoise(opts.Seed, opts.NoiseScale),
		biome:   NewNoise(opts.Seed+42, opts.BiomeScale),
		log:     logging.GetWorldgenLogger(),
		pending: make(map[world.ClusterPos]struct{}),
		queue:   make(chan world.ClusterPos, opts.QueueSize),
	}
}

// Enqueue ставит позицию в очередь генерации. Позиция, уже стоящая в очереди, игнорируется.
// Если очередь переполнена, запрос отбрасывается: планировщик повторит его на следующем проходе.
func (g *Generator) Enqueue(pos world.ClusterPos) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.pending[pos]; ok {
		return false
	}

	select {
	case g.queue <- pos:
		g.pending[pos] = struct{}{}
		return true
	default:
		g.dropped.Add(1)
		return false
	}
}

// Run обрабатывает очередь в Options.Workers горутинах до отмены ctx
func (g *Generator) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for i := 0; i < g.opts.Workers; i++ {
		eg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case pos := <-g.queue:
					g.Generate(pos)
					g.mu.Lock()
					delete(g.pending, pos)
					g.mu.Unlock()
				}
			}
		})
	}

	g.log.Info("🌍 Генератор мира запущен: воркеров=%d, сид=%d", g.opts.Workers, g.opts.Seed)
	err := eg.Wait()
	g.log.Info("🛑 Генератор мира остановлен, создано кластеров: %d", g.generated.Load())
	return err
}

// Stats возвращает статистику генератора
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	pending := len(g.pending)
	g.mu.Unlock()

	return Stats{
		Generated: g.generated.Load(),
		Dropped:   g.dropped.Load(),
		Pending:   pending,
	}
}

// Generate синхронно создаёт кластер на позиции и добавляет его в реестр.
// Если кластер уже загружен, возвращается существующий.
func (g *Generator) Generate(pos world.ClusterPos) *world.Cluster {
	if c := g.reg.ClusterFromPosition(pos); c != nil {
		return c
	}

	c := g.reg.NewCluster(pos)
	g.Fill(c)
	c.FinalizeGeneration()
	c.Touch(g.opts.Lifetime)

	stored := g.reg.Add(c)
	if stored == c {
		g.generated.Add(1)
		g.log.Trace("Кластер %s сгенерирован", pos)
	}
	return stored
}

// Fill заполняет блоки кластера по карте высот
func (g *Generator) Fill(c *world.Cluster) {
	oh, ov := c.Origin().BlockOrigin()

	for v := 0; v < world.HVSize; v++ {
		for h := 0; h < world.HVSize; h++ {
			g.fillColumn(c, h, v, oh+int64(h), ov+int64(v))
		}
	}
}

// SurfaceHeight возвращает высоту поверхности в блоках для абсолютной колонки (h, v)
func (g *Generator) SurfaceHeight(h, v int64) float64 {
	n := g.height.At(float64(h), float64(v))
	return g.opts.MinHeight + n*(g.opts.MaxHeight-g.opts.MinHeight)
}

// Biome определяет биом колонки
func (g *Generator) Biome(h, v int64) BiomeType {
	switch b := g.biome.At(float64(h), float64(v)); {
	case b < DesertMax:
		return BiomeDesert
	case b > MountainStart:
		return BiomeMountains
	default:
		return BiomePlains
	}
}

func (g *Generator) fillColumn(c *world.Cluster, h, v int, absH, absV int64) {
	height := g.SurfaceHeight(absH, absV)
	top := int(math.Floor(height))
	frac := height - float64(top)

	surface := g.surfaceBlock(absH, absV, top)
	dirt := block.New(block.DirtID, block.ShapeSolid)
	stone := block.New(block.StoneID, block.ShapeSolid)

	for d := 0; d < top; d++ {
		switch {
		case d == top-1:
			c.SetBlockRelative(h, v, d, block.New(surface, block.ShapeSolid))
		case d >= top-3 && surface != block.StoneID:
			c.SetBlockRelative(h, v, d, dirt)
		default:
			c.SetBlockRelative(h, v, d, stone)
		}
	}

	if shape, ok := g.capShape(absH, absV, frac); ok {
		c.SetBlockRelative(h, v, top, block.New(surface, shape))
	}

	water := block.New(block.WaterID, block.ShapeFluid)
	for d := top; d < g.opts.SeaLevel && d < world.DSize; d++ {
		if c.GetBlockRelative(h, v, d).IsEmpty() {
			c.SetBlockRelative(h, v, d, water)
		}
	}
}

// surfaceBlock выбирает верхний блок колонки по биому и высоте
func (g *Generator) surfaceBlock(h, v int64, top int) uint16 {
	if top <= g.opts.SeaLevel {
		return block.SandID
	}
	switch g.Biome(h, v) {
	case BiomeDesert:
		return block.SandID
	case BiomeMountains:
		return block.StoneID
	default:
		return block.GrassID
	}
}

// capShape выбирает форму верхнего неполного блока по дробной высоте и уклону.
// На крутом склоне ставится рампа, поднимающаяся в сторону склона.
func (g *Generator) capShape(h, v int64, frac float64) (block.Shape, bool) {
	if frac < 0.25 {
		return block.ShapeEmpty, false
	}

	dh := g.SurfaceHeight(h+1, v) - g.SurfaceHeight(h-1, v)
	dv := g.SurfaceHeight(h, v+1) - g.SurfaceHeight(h, v-1)

	const steep = 0.3
	if math.Abs(dh) >= math.Abs(dv) && math.Abs(dh) > steep {
		if dh > 0 {
			return block.ShapeRampEast, true
		}
		return block.ShapeRampWest, true
	}
	if math.Abs(dv) > steep {
		if dv > 0 {
			return block.ShapeRampNorth, true
		}
		return block.ShapeRampSouth, true
	}

	if frac < 0.75 {
		return block.ShapeHalfLower, true
	}
	return block.ShapeSolid, true
}
