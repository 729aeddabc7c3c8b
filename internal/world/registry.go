package world

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/annel0/gridworld/internal/world/block"
)

const registryShards = 16

type registryShard struct {
	mu       sync.RWMutex
	clusters map[ClusterPos]*Cluster
}

// Registry хранит загруженные кластеры мира. Карта разбита на шарды
// по xxhash позиции, у каждого шарда своя блокировка.
type Registry struct {
	table  *block.Table
	shards [registryShards]*registryShard
}

// NewRegistry создаёт пустой реестр. Все кластеры реестра используют общую таблицу блоков.
func NewRegistry(table *block.Table) *Registry {
	if table == nil {
		table = block.NewTable(nil)
	}
	r := &Registry{table: table}
	for i := range r.shards {
		r.shards[i] = &registryShard{clusters: make(map[ClusterPos]*Cluster)}
	}
	return r
}

func (r *Registry) shard(pos ClusterPos) *registryShard {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[:8], uint64(pos.H))
	binary.LittleEndian.PutUint64(key[8:], uint64(pos.V))
	return r.shards[xxhash.Sum64(key[:])%registryShards]
}

// Table возвращает общую таблицу блоков
func (r *Registry) Table() *block.Table {
	return r.table
}

// NewCluster создаёт кластер, привязанный к таблице реестра (в реестр не добавляет)
func (r *Registry) NewCluster(pos ClusterPos) *Cluster {
	return NewCluster(pos, r.table)
}

// ClusterFromPosition возвращает кластер или nil, если он не загружен
func (r *Registry) ClusterFromPosition(pos ClusterPos) *Cluster {
	s := r.shard(pos)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clusters[pos]
}

// ClusterAt возвращает кластер, содержащий блок (h, v)
func (r *Registry) ClusterAt(h, v int64) *Cluster {
	return r.ClusterFromPosition(ClusterPosFromBlock(h, v))
}

// Add добавляет кластер. Если позиция уже занята, возвращается существующий кластер.
func (r *Registry) Add(c *Cluster) *Cluster {
	pos := c.Origin()
	s := r.shard(pos)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.clusters[pos]; ok {
		return existing
	}
	s.clusters[pos] = c
	return c
}

// Remove удаляет кластер и возвращает его (nil, если его не было)
func (r *Registry) Remove(pos ClusterPos) *Cluster {
	s := r.shard(pos)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[pos]
	if !ok {
		return nil
	}
	delete(s.clusters, pos)
	return c
}

// Len возвращает число загруженных кластеров
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.clusters)
		s.mu.RUnlock()
	}
	return n
}

// DropDepth возвращает высоту поверхности в абсолютной точке (h, v) блочного пространства.
// Колонка выбирается в целых числах, во float32 переводится только дробная часть.
func (r *Registry) DropDepth(h, v float64) (float32, bool) {
	fh, fv := math.Floor(h), math.Floor(v)
	bh, bv := int64(fh), int64(fv)
	c := r.ClusterAt(bh, bv)
	if c == nil {
		return 0, false
	}
	oh, ov := c.Origin().BlockOrigin()
	return c.ColumnDepth(int(bh-oh), int(bv-ov), float32(h-fh), float32(v-fv))
}

// Age уменьшает время жизни всех кластеров на dt и выгружает истёкшие.
// Кластеры, для которых строится меш, остаются до завершения построения.
func (r *Registry) Age(dt time.Duration) []*Cluster {
	var evicted []*Cluster
	for _, s := range r.shards {
		s.mu.Lock()
		for pos, c := range s.clusters {
			if !c.Age(dt) {
				continue
			}
			if c.Status() == StatusGeometryPending {
				continue
			}
			delete(s.clusters, pos)
			evicted = append(evicted, c)
		}
		s.mu.Unlock()
	}
	return evicted
}
