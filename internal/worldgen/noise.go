package worldgen

import (
	"github.com/aquilax/go-perlin"
)

// Noise — двумерный шум Перлина со значениями от 0 до 1.
// После создания только читается, поэтому безопасен для параллельного использования.
type Noise struct {
	p     *perlin.Perlin
	scale float64
}

// NewNoise создаёт генератор шума с указанным сидом и масштабом координат
func NewNoise(seed int64, scale float64) *Noise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Noise{p: perlin.NewPerlin(alpha, beta, n, seed), scale: scale}
}

// At возвращает значение шума в точке (x, y) мира
func (n *Noise) At(x, y float64) float64 {
	// Получаем значение шума (примерно от -1 до 1) и переводим в диапазон от 0 до 1
	v := (n.p.Noise2D(x*n.scale, y*n.scale) + 1.0) / 2.0
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
