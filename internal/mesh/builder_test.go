package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gridworld/internal/world"
	"github.com/annel0/gridworld/internal/world/block"
)

func solid(id uint16) block.Block { return block.New(id, block.ShapeSolid) }

func TestBuild_SingleBlock(t *testing.T) {
	c := world.NewCluster(world.ClusterPos{}, nil)
	c.SetBlockRelative(4, 4, 4, solid(block.StoneID))

	geo := Build(c)
	assert.Equal(t, 1, geo.Blocks)
	assert.Equal(t, 6, geo.Faces)
	assert.Equal(t, 24, geo.Vertices)
	assert.Equal(t, 36, geo.Indices)
}

func TestBuild_AdjacentBlocksShareHiddenFaces(t *testing.T) {
	c := world.NewCluster(world.ClusterPos{}, nil)
	c.SetBlockRelative(4, 4, 4, solid(block.StoneID))
	c.SetBlockRelative(5, 4, 4, solid(block.DirtID))

	assert.Equal(t, 10, Build(c).Faces, "Общая грань двух блоков скрыта с обеих сторон")
}

func TestBuild_TransparentNeighbour(t *testing.T) {
	c := world.NewCluster(world.ClusterPos{}, nil)
	c.SetBlockRelative(4, 4, 4, solid(block.StoneID))
	c.SetBlockRelative(4, 4, 5, block.New(block.WaterID, block.ShapeFluid))

	// Вода не скрывает камень, а камень скрывает грань воды
	assert.Equal(t, 11, Build(c).Faces)
}

func TestBuild_RampDoesNotOcclude(t *testing.T) {
	c := world.NewCluster(world.ClusterPos{}, nil)
	c.SetBlockRelative(0, 0, 0, solid(block.StoneID))
	c.SetBlockRelative(0, 0, 1, block.New(block.GrassID, block.ShapeRampNorth))

	assert.Equal(t, 11, Build(c).Faces)
}

func TestBuild_FullClusterOnlyBoundary(t *testing.T) {
	c := world.NewCluster(world.ClusterPos{}, nil)
	stone := solid(block.StoneID)
	for d := 0; d < world.DSize; d++ {
		for v := 0; v < world.HVSize; v++ {
			for h := 0; h < world.HVSize; h++ {
				c.SetBlockRelative(h, v, d, stone)
			}
		}
	}

	geo := Build(c)
	assert.Equal(t, world.HVSize*world.HVSize*world.DSize, geo.Blocks)
	assert.Equal(t, 6*world.HVSize*world.HVSize, geo.Faces, "Видны только грани на границе кластера")
}

func TestBuilder_InstallsGeometry(t *testing.T) {
	c := world.NewCluster(world.ClusterPos{H: 3}, nil)
	c.SetBlockRelative(1, 1, 1, solid(block.StoneID))
	require.True(t, c.FinalizeGeneration())

	b := NewBuilder()
	b.BuildGeometry(c)

	assert.Equal(t, world.StatusGeometryCreated, c.Status(), "Построитель сам проходит шлюз для Generated")
	require.True(t, c.GeoValid())
	assert.Equal(t, 24, c.Geometry().VertexCount())
	assert.Equal(t, BuilderStats{Built: 1}, b.Stats())
}

func TestBuilder_RawClusterDiscarded(t *testing.T) {
	c := world.NewCluster(world.ClusterPos{}, nil)

	b := NewBuilder()
	b.BuildGeometry(c)

	assert.Equal(t, world.StatusRaw, c.Status())
	assert.False(t, c.GeoValid())
	assert.Equal(t, BuilderStats{Discarded: 1}, b.Stats())
}

func TestGeometry_NilVertexCount(t *testing.T) {
	var g *Geometry
	assert.Equal(t, 0, g.VertexCount())
}
