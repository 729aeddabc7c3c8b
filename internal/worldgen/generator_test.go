package worldgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gridworld/internal/world"
	"github.com/annel0/gridworld/internal/world/block"
)

func TestNoise_Range(t *testing.T) {
	n := NewNoise(7, 0.1)
	for x := -50; x < 50; x += 3 {
		for y := -50; y < 50; y += 7 {
			v := n.At(float64(x), float64(y))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestGenerate_FillsClusterAndRegisters(t *testing.T) {
	reg := world.NewRegistry(nil)
	g := New(DefaultOptions(), reg)

	pos := world.ClusterPos{H: -1, V: 2}
	c := g.Generate(pos)

	require.NotNil(t, c)
	assert.Same(t, c, reg.ClusterFromPosition(pos))
	assert.Equal(t, world.StatusGenerated, c.Status())
	assert.Equal(t, DefaultOptions().Lifetime, c.AliveFor())
	assert.Same(t, c, g.Generate(pos), "Повторная генерация возвращает загруженный кластер")
	assert.Equal(t, uint64(1), g.Stats().Generated)

	// В каждой колонке есть поверхность, а под ней — твёрдый пол
	for v := 0; v < world.HVSize; v++ {
		for h := 0; h < world.HVSize; h++ {
			depth, ok := c.DropDepth(float32(h)+0.5, float32(v)+0.5)
			require.True(t, ok, "Колонка (%d,%d) пуста", h, v)
			assert.GreaterOrEqual(t, depth, float32(1))
			assert.LessOrEqual(t, depth, float32(world.DSize))
			assert.Equal(t, block.ShapeSolid, c.GetBlockRelative(h, v, 0).Shape)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := New(DefaultOptions(), world.NewRegistry(nil)).Generate(world.ClusterPos{H: 3, V: -4})
	b := New(DefaultOptions(), world.NewRegistry(nil)).Generate(world.ClusterPos{H: 3, V: -4})

	diff := 0
	a.ForEachBlock(func(h, v, d int, blk block.Block) {
		if b.GetBlockRelative(h, v, d) != blk {
			diff++
		}
	})
	assert.Zero(t, diff, "Один сид даёт один и тот же ландшафт")
}

func TestGenerate_SeaLevelFlooded(t *testing.T) {
	opts := DefaultOptions()
	opts.MinHeight = 2
	opts.MaxHeight = 6
	opts.SeaLevel = 12
	g := New(opts, world.NewRegistry(nil))

	c := g.Generate(world.ClusterPos{})
	for v := 0; v < world.HVSize; v += 5 {
		for h := 0; h < world.HVSize; h += 5 {
			depth, ok := c.DropDepth(float32(h)+0.5, float32(v)+0.5)
			require.True(t, ok)
			assert.Equal(t, float32(12), depth, "Низина залита водой до уровня моря")
			assert.Equal(t, block.ShapeFluid, c.GetBlockRelative(h, v, 11).Shape)
		}
	}
}

func TestSurfaceHeight_WithinBounds(t *testing.T) {
	g := New(DefaultOptions(), world.NewRegistry(nil))
	opts := DefaultOptions()

	for h := int64(-200); h < 200; h += 13 {
		for v := int64(-200); v < 200; v += 11 {
			height := g.SurfaceHeight(h, v)
			assert.GreaterOrEqual(t, height, opts.MinHeight)
			assert.LessOrEqual(t, height, opts.MaxHeight)
		}
	}
}

func TestEnqueue_DedupeAndRun(t *testing.T) {
	reg := world.NewRegistry(nil)
	g := New(DefaultOptions(), reg)

	positions := []world.ClusterPos{{H: 0}, {H: 1}, {H: -1, V: 5}}
	for _, p := range positions {
		assert.True(t, g.Enqueue(p))
	}
	assert.False(t, g.Enqueue(world.ClusterPos{H: 1}), "Позиция уже в очереди")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool {
		return reg.Len() == len(positions) && g.Stats().Pending == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run не остановился после отмены контекста")
	}

	for _, p := range positions {
		c := reg.ClusterFromPosition(p)
		require.NotNil(t, c)
		assert.Equal(t, world.StatusGenerated, c.Status())
	}
}

func TestEnqueue_FullQueueDrops(t *testing.T) {
	opts := DefaultOptions()
	opts.QueueSize = 1
	g := New(opts, world.NewRegistry(nil))

	assert.True(t, g.Enqueue(world.ClusterPos{H: 0}))
	assert.False(t, g.Enqueue(world.ClusterPos{H: 1}))

	stats := g.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.Pending)

	// Отброшенная позиция не считается ожидающей и может быть поставлена позже
	assert.False(t, g.Enqueue(world.ClusterPos{H: 1}))
	assert.Equal(t, uint64(2), g.Stats().Dropped)
}
