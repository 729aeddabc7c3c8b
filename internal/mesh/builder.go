package mesh

import (
	"sync/atomic"

	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/world"
	"github.com/annel0/gridworld/internal/world/block"
)

// Вершин и индексов на одну грань (два треугольника)
const (
	verticesPerFace = 4
	indicesPerFace  = 6
)

// Geometry — сводка построенного меша кластера
type Geometry struct {
	Blocks   int // Непустых блоков
	Faces    int // Видимых граней
	Vertices int
	Indices  int
}

// VertexCount возвращает число вершин меша
func (g *Geometry) VertexCount() int {
	if g == nil {
		return 0
	}
	return g.Vertices
}

// BuilderStats содержит статистику построителя
type BuilderStats struct {
	Built     uint64
	Discarded uint64
}

// Builder строит меши кластеров с отсечением скрытых граней
type Builder struct {
	log       *logging.Logger
	built     atomic.Uint64
	discarded atomic.Uint64
}

// NewBuilder создаёт построитель геометрии
func NewBuilder() *Builder {
	return &Builder{log: logging.GetComponentLogger("mesh")}
}

// BuildGeometry строит меш и устанавливает его в кластер.
// Кластер в статусе Generated сначала проходит шлюз BeginGeometry, поэтому
// построитель можно вызывать и напрямую, без планировщика.
func (b *Builder) BuildGeometry(c *world.Cluster) {
	if c.Status() == world.StatusGenerated {
		c.BeginGeometry()
	}

	cycle := c.Cycle()
	geo := Build(c)

	if !c.UpdateGeoCycle(geo, cycle) {
		b.discarded.Add(1)
		b.log.Trace("Меш кластера %s устарел и отброшен", c.Origin())
		return
	}
	b.built.Add(1)
	b.log.Trace("Меш кластера %s: %d граней", c.Origin(), geo.Faces)
}

// Stats возвращает статистику построителя
func (b *Builder) Stats() BuilderStats {
	return BuilderStats{Built: b.built.Load(), Discarded: b.discarded.Load()}
}

var neighbours = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Build считает видимые грани кластера. Грань скрыта, если соседняя ячейка внутри
// кластера занята полным непрозрачным блоком. Грани на границе кластера видимы.
func Build(c *world.Cluster) *Geometry {
	opaque := opacityOf(c.Table().Definitions())
	geo := &Geometry{}

	c.ForEachBlock(func(h, v, d int, b block.Block) {
		if b.IsEmpty() {
			return
		}
		geo.Blocks++

		for _, n := range neighbours {
			nh, nv, nd := h+n[0], v+n[1], d+n[2]
			if nh < 0 || nh >= world.HVSize || nv < 0 || nv >= world.HVSize || nd < 0 || nd >= world.DSize {
				geo.Faces++
				continue
			}
			if !occludes(c.GetBlockRelative(nh, nv, nd), opaque) {
				geo.Faces++
			}
		}
	})

	geo.Vertices = geo.Faces * verticesPerFace
	geo.Indices = geo.Faces * indicesPerFace
	return geo
}

func occludes(b block.Block, opaque func(uint16) bool) bool {
	return b.Shape == block.ShapeSolid && opaque(b.DefinitionID)
}

// opacityOf возвращает кэширующую функцию непрозрачности определения
func opacityOf(defs *block.Definitions) func(uint16) bool {
	cache := make(map[uint16]bool)
	return func(id uint16) bool {
		if v, ok := cache[id]; ok {
			return v
		}
		def, err := defs.Definition(id)
		v := err == nil && def.Opaque
		cache[id] = v
		return v
	}
}
