package world

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gridworld/internal/world/block"
)

func TestRegistry_AddLookupRemove(t *testing.T) {
	r := NewRegistry(nil)
	assert.Nil(t, r.ClusterFromPosition(ClusterPos{}))

	c := r.NewCluster(ClusterPos{H: -2, V: 3})
	assert.Same(t, c, r.Add(c))
	assert.Same(t, c, r.ClusterFromPosition(ClusterPos{H: -2, V: 3}))
	assert.Same(t, c, r.ClusterAt(-40, 100), "Блок (-40,100) лежит в кластере (-2,3)")
	assert.Same(t, r.Table(), c.Table(), "Кластеры реестра делят таблицу блоков")

	dup := r.NewCluster(ClusterPos{H: -2, V: 3})
	assert.Same(t, c, r.Add(dup), "Повторное добавление возвращает существующий кластер")
	assert.Equal(t, 1, r.Len())

	assert.Same(t, c, r.Remove(ClusterPos{H: -2, V: 3}))
	assert.Nil(t, r.Remove(ClusterPos{H: -2, V: 3}))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentAdd(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := int64(-10); h < 10; h++ {
				for v := int64(-10); v < 10; v++ {
					r.Add(r.NewCluster(ClusterPos{H: h, V: v}))
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, r.Len())
}

func TestRegistry_DropDepth(t *testing.T) {
	r := NewRegistry(nil)

	_, ok := r.DropDepth(5, 5)
	assert.False(t, ok, "Незагруженный кластер не имеет поверхности")

	c := r.Add(r.NewCluster(ClusterPos{H: -1, V: 0}))
	c.SetBlockRelative(31, 2, 4, block.New(block.StoneID, block.ShapeSolid))

	depth, ok := r.DropDepth(-0.5, 2.5)
	require.True(t, ok)
	assert.Equal(t, float32(5), depth)
}

func TestRegistry_DropDepthAtClusterEdge(t *testing.T) {
	r := NewRegistry(nil)
	c := r.Add(r.NewCluster(ClusterPos{H: 0, V: 0}))
	c.SetBlockRelative(HVSize-1, 0, 3, block.New(block.StoneID, block.ShapeSolid))
	c.SetBlockRelative(0, HVSize-1, 7, block.New(block.StoneID, block.ShapeSolid))

	// Во float32 эти координаты округлились бы до границы кластера
	depth, ok := r.DropDepth(HVSize-1e-8, 0.5)
	require.True(t, ok)
	assert.Equal(t, float32(4), depth)

	depth, ok = r.DropDepth(0.5, HVSize-1e-8)
	require.True(t, ok)
	assert.Equal(t, float32(8), depth)
}

func TestRegistry_AgeEvictsExpired(t *testing.T) {
	r := NewRegistry(nil)

	old := r.Add(r.NewCluster(ClusterPos{H: 0, V: 0}))
	old.Touch(time.Second)

	fresh := r.Add(r.NewCluster(ClusterPos{H: 1, V: 0}))
	fresh.Touch(time.Minute)

	building := r.Add(r.NewCluster(ClusterPos{H: 2, V: 0}))
	building.Touch(time.Second)
	require.True(t, building.FinalizeGeneration())
	require.True(t, building.BeginGeometry())

	evicted := r.Age(2 * time.Second)
	require.Len(t, evicted, 1)
	assert.Same(t, old, evicted[0])
	assert.Nil(t, r.ClusterFromPosition(ClusterPos{}))
	assert.NotNil(t, r.ClusterFromPosition(ClusterPos{H: 2, V: 0}), "Кластер с незавершённым построением не выгружается")
	assert.Equal(t, 2, r.Len())
}
