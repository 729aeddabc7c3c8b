package world

import "fmt"

// Размеры кластера в блоках
const (
	HVSize = 32 // по горизонтали (h) и вертикали карты (v)
	DSize  = 32 // по глубине (d), то есть по высоте мира

	clusterVolume = HVSize * HVSize * DSize
)

// ClusterPos — координаты кластера в сетке кластеров (одна единица = ширина кластера).
// Значение сравнимо и используется как ключ карты.
type ClusterPos struct {
	H int64
	V int64
}

// ClusterPosFromBlock возвращает кластер, содержащий блок с абсолютными координатами (h, v)
func ClusterPosFromBlock(h, v int64) ClusterPos {
	return ClusterPos{H: floorDiv(h, HVSize), V: floorDiv(v, HVSize)}
}

// Offset сдвигает позицию на (dh, dv) блоков и возвращает кластер, в который попадает результат
func (p ClusterPos) Offset(dh, dv int64) ClusterPos {
	h, v := p.BlockOrigin()
	return ClusterPosFromBlock(h+dh, v+dv)
}

// BlockOrigin возвращает абсолютные координаты угла кластера в блоках
func (p ClusterPos) BlockOrigin() (h, v int64) {
	return p.H * HVSize, p.V * HVSize
}

// Less задаёт порядок: сначала по H, затем по V
func (p ClusterPos) Less(other ClusterPos) bool {
	if p.H != other.H {
		return p.H < other.H
	}
	return p.V < other.V
}

// DistanceSq возвращает квадрат расстояния до другой позиции в кластерах
func (p ClusterPos) DistanceSq(other ClusterPos) int64 {
	dh := p.H - other.H
	dv := p.V - other.V
	return dh*dh + dv*dv
}

// String возвращает строковое представление позиции
func (p ClusterPos) String() string {
	return fmt.Sprintf("(%d,%d)", p.H, p.V)
}

// floorDiv — деление с округлением вниз, корректное для отрицательных координат
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
