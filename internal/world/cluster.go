package world

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/gridworld/internal/signal"
	"github.com/annel0/gridworld/internal/world/block"
)

// Geometry — данные меша кластера. Конкретный тип принадлежит построителю геометрии.
type Geometry interface {
	VertexCount() int
}

// Bounds — ограничивающий параллелепипед в абсолютных координатах (X=h, Y=d, Z=v)
type Bounds struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Contains проверяет, лежит ли точка внутри (верхняя граница не включается)
func (b Bounds) Contains(p mgl64.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() < b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() < b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() < b.Max.Z()
}

// Center возвращает центр параллелепипеда
func (b Bounds) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Cluster — куб HVSize×HVSize×DSize блоков, единица генерации и подгрузки мира.
//
// Статус и флаг привязки защищены statusMu, ссылка на меш — отдельным geoMu,
// чтобы чтение статуса не зависело от замены меша. Если нужны обе блокировки,
// они берутся в порядке statusMu → geoMu.
type Cluster struct {
	origin ClusterPos
	table  *block.Table

	blocks     []uint16 // Индексы в table; выделяются лениво
	blocksOnce sync.Once

	statusMu    sync.Mutex
	status      Status
	needBinding bool
	cycle       uint64 // Номер цикла «грязной» геометрии

	geoMu    sync.Mutex
	geometry Geometry

	alive atomic.Int64 // Оставшееся время жизни (наносекунды)

	boundsMu    sync.Mutex
	boundsValid bool
	bounds      Bounds

	// Произвольные данные рендерера; ядро их не трогает
	Tag       any
	RenderTag any

	dirty      signal.Signal[*Cluster]
	geoRefresh signal.Signal[*Cluster]
}

// NewCluster создаёт пустой кластер в статусе Raw
func NewCluster(origin ClusterPos, table *block.Table) *Cluster {
	if table == nil {
		table = block.NewTable(nil)
	}
	return &Cluster{
		origin: origin,
		table:  table,
		status: StatusRaw,
	}
}

// Origin возвращает позицию кластера в сетке
func (c *Cluster) Origin() ClusterPos {
	return c.origin
}

// SetOrigin переносит кластер и сбрасывает закешированные границы
func (c *Cluster) SetOrigin(origin ClusterPos) {
	c.origin = origin
	c.InvalidateBounds()
}

// Table возвращает таблицу блоков, на которую ссылается кластер
func (c *Cluster) Table() *block.Table {
	return c.table
}

// String возвращает строковое представление кластера
func (c *Cluster) String() string {
	return fmt.Sprintf("cluster%s[%s]", c.origin, c.Status())
}

// ---------------------------------------------------------------------------
// Блоки
// ---------------------------------------------------------------------------

func (c *Cluster) storage() []uint16 {
	c.blocksOnce.Do(func() {
		c.blocks = make([]uint16, clusterVolume) // нулевой индекс — Empty
	})
	return c.blocks
}

// index возвращает плоский индекс ячейки. Выход за пределы — ошибка программы.
func index(h, v, d int) int {
	if h < 0 || h >= HVSize || v < 0 || v >= HVSize || d < 0 || d >= DSize {
		panic(fmt.Sprintf("world: block coordinate (%d,%d,%d) out of cluster range", h, v, d))
	}
	return d*HVSize*HVSize + v*HVSize + h
}

// BlockPositionFromIndex — обратное преобразование плоского индекса в (h, v, d)
func BlockPositionFromIndex(i int) (h, v, d int) {
	if i < 0 || i >= clusterVolume {
		panic(fmt.Sprintf("world: block index %d out of cluster range", i))
	}
	d = i / (HVSize * HVSize)
	rest := i % (HVSize * HVSize)
	v = rest / HVSize
	h = rest % HVSize
	return h, v, d
}

// GetBlockRelative возвращает блок по координатам внутри кластера
func (c *Cluster) GetBlockRelative(h, v, d int) block.Block {
	return c.table.Get(c.storage()[index(h, v, d)])
}

// GetBlockIndexRelative возвращает индекс блока в общей таблице
func (c *Cluster) GetBlockIndexRelative(h, v, d int) uint16 {
	return c.storage()[index(h, v, d)]
}

// SetBlockRelative записывает блок, добавляя его в общую таблицу при необходимости.
// Геометрию не сбрасывает: после серии изменений вызывающий вызывает DirtyGeo.
func (c *Cluster) SetBlockRelative(h, v, d int, b block.Block) {
	c.storage()[index(h, v, d)] = c.table.Intern(b)
}

// SetBlockIndexRelative записывает уже опубликованный индекс таблицы
func (c *Cluster) SetBlockIndexRelative(h, v, d int, blockIndex uint16) {
	c.table.Get(blockIndex) // паникует на неопубликованном индексе
	c.storage()[index(h, v, d)] = blockIndex
}

// GetBlockAbs возвращает блок по абсолютным координатам (h, v в блоках мира)
func (c *Cluster) GetBlockAbs(h, v int64, d int) block.Block {
	oh, ov := c.origin.BlockOrigin()
	return c.GetBlockRelative(int(h-oh), int(v-ov), d)
}

// SetBlockAbs записывает блок по абсолютным координатам
func (c *Cluster) SetBlockAbs(h, v int64, d int, b block.Block) {
	oh, ov := c.origin.BlockOrigin()
	c.SetBlockRelative(int(h-oh), int(v-ov), d, b)
}

// ClearAllBlocks заполняет кластер пустыми блоками и сбрасывает меш
func (c *Cluster) ClearAllBlocks() {
	blocks := c.storage()
	for i := range blocks {
		blocks[i] = 0
	}

	c.geoMu.Lock()
	c.geometry = nil
	c.geoMu.Unlock()
}

// ForEachBlock обходит все ячейки в порядке d, v, h
func (c *Cluster) ForEachBlock(fn func(h, v, d int, b block.Block)) {
	if fn == nil {
		return
	}
	blocks := c.storage()
	for d := 0; d < DSize; d++ {
		for v := 0; v < HVSize; v++ {
			for h := 0; h < HVSize; h++ {
				fn(h, v, d, c.table.Get(blocks[d*HVSize*HVSize+v*HVSize+h]))
			}
		}
	}
}

// DropDepth возвращает высоту проходимой поверхности в точке (x, z) внутри кластера.
// Целая часть координат выбирает колонку, дробная — точку внутри ячейки.
// Слои просматриваются сверху вниз; ok == false, если колонка пуста.
func (c *Cluster) DropDepth(x, z float32) (depth float32, ok bool) {
	fh := float32(math.Floor(float64(x)))
	fv := float32(math.Floor(float64(z)))
	return c.ColumnDepth(int(fh), int(fv), x-fh, z-fv)
}

// ColumnDepth возвращает высоту поверхности в колонке (h, v) в точке (localX, localZ) ячейки
func (c *Cluster) ColumnDepth(h, v int, localX, localZ float32) (depth float32, ok bool) {
	for d := DSize - 1; d >= 0; d-- {
		if height, found := c.GetBlockRelative(h, v, d).HeightAt(localX, localZ); found {
			return float32(d) + height, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Границы
// ---------------------------------------------------------------------------

// Bounds возвращает границы кластера в абсолютных координатах; значение кешируется
func (c *Cluster) Bounds() Bounds {
	c.boundsMu.Lock()
	defer c.boundsMu.Unlock()

	if !c.boundsValid {
		h, v := c.origin.BlockOrigin()
		c.bounds = Bounds{
			Min: mgl64.Vec3{float64(h), 0, float64(v)},
			Max: mgl64.Vec3{float64(h + HVSize), DSize, float64(v + HVSize)},
		}
		c.boundsValid = true
	}
	return c.bounds
}

// InvalidateBounds сбрасывает закешированные границы
func (c *Cluster) InvalidateBounds() {
	c.boundsMu.Lock()
	c.boundsValid = false
	c.boundsMu.Unlock()
}

// ---------------------------------------------------------------------------
// Время жизни
// ---------------------------------------------------------------------------

// Touch продлевает жизнь кластера на d
func (c *Cluster) Touch(d time.Duration) {
	c.alive.Store(int64(d))
}

// Age уменьшает оставшееся время жизни и сообщает, истекло ли оно
func (c *Cluster) Age(dt time.Duration) (expired bool) {
	return c.alive.Add(-int64(dt)) <= 0
}

// AliveFor возвращает оставшееся время жизни
func (c *Cluster) AliveFor() time.Duration {
	return time.Duration(c.alive.Load())
}

// ---------------------------------------------------------------------------
// События
// ---------------------------------------------------------------------------

// Dirty — сигнал ClusterDirty: блоки изменены, геометрия устарела
func (c *Cluster) Dirty() *signal.Signal[*Cluster] {
	return &c.dirty
}

// GeoRefresh — сигнал ClusterGeoRefresh: меш обновлён или запрошена привязка
func (c *Cluster) GeoRefresh() *signal.Signal[*Cluster] {
	return &c.geoRefresh
}
