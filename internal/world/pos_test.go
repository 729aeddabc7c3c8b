package world

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterPosFromBlock_Negative(t *testing.T) {
	assert.Equal(t, ClusterPos{0, 0}, ClusterPosFromBlock(0, 31))
	assert.Equal(t, ClusterPos{1, 0}, ClusterPosFromBlock(32, 0))
	assert.Equal(t, ClusterPos{-1, -1}, ClusterPosFromBlock(-1, -32), "Отрицательные координаты округляются вниз")
	assert.Equal(t, ClusterPos{-2, 0}, ClusterPosFromBlock(-33, 5))
}

func TestClusterPos_Offset(t *testing.T) {
	p := ClusterPos{H: 2, V: -3}

	assert.Equal(t, ClusterPos{3, -3}, p.Offset(HVSize, 0))
	assert.Equal(t, ClusterPos{2, -5}, p.Offset(0, -2*HVSize))
	assert.Equal(t, p, p.Offset(HVSize-1, 0), "Сдвиг внутри кластера не меняет позицию")
	assert.Equal(t, ClusterPos{1, -3}, p.Offset(-1, 0))
}

func TestClusterPos_OrderAndDistance(t *testing.T) {
	positions := []ClusterPos{{1, 2}, {0, 5}, {1, -1}, {-3, 0}}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })
	assert.Equal(t, []ClusterPos{{-3, 0}, {0, 5}, {1, -1}, {1, 2}}, positions)

	assert.False(t, ClusterPos{1, 1}.Less(ClusterPos{1, 1}), "Равные позиции не меньше друг друга")
	assert.Equal(t, int64(25), ClusterPos{0, 0}.DistanceSq(ClusterPos{3, -4}))
	assert.Equal(t, "(-1,7)", ClusterPos{-1, 7}.String())
}

func TestClusterPos_MapKey(t *testing.T) {
	m := map[ClusterPos]int{{1, 2}: 1}
	m[ClusterPos{H: 1, V: 2}]++
	assert.Equal(t, 2, m[ClusterPos{1, 2}], "Позиция сравнивается покомпонентно")
}
