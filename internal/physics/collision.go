package physics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// BoxCollider представляет прямоугольный след сущности на плоскости (h, v)
type BoxCollider struct {
	Width float64 // Размер по h в блоках
	Depth float64 // Размер по v в блоках
}

// NewBoxCollider создаёт новый коллайдер с указанными размерами
func NewBoxCollider(width, depth float64) *BoxCollider {
	return &BoxCollider{
		Width: width,
		Depth: depth,
	}
}

// IsPointInside проверяет, находится ли точка внутри коллайдера с центром в center
func (bc *BoxCollider) IsPointInside(center, point mgl64.Vec2) bool {
	halfWidth := bc.Width / 2
	halfDepth := bc.Depth / 2

	return point.X() >= center.X()-halfWidth &&
		point.X() < center.X()+halfWidth &&
		point.Y() >= center.Y()-halfDepth &&
		point.Y() < center.Y()+halfDepth
}

// CheckBoxCollision проверяет пересечение двух коллайдеров
func CheckBoxCollision(pos1 mgl64.Vec2, collider1 *BoxCollider, pos2 mgl64.Vec2, collider2 *BoxCollider) bool {
	halfWidth1 := collider1.Width / 2
	halfDepth1 := collider1.Depth / 2
	halfWidth2 := collider2.Width / 2
	halfDepth2 := collider2.Depth / 2

	return pos1.X()+halfWidth1 > pos2.X()-halfWidth2 &&
		pos1.X()-halfWidth1 < pos2.X()+halfWidth2 &&
		pos1.Y()+halfDepth1 > pos2.Y()-halfDepth2 &&
		pos1.Y()-halfDepth1 < pos2.Y()+halfDepth2
}

// CollisionPoints возвращает точки, в которых опрашивается поверхность под коллайдером.
// Для коллайдера не больше блока — только центр, иначе четыре угла и центр.
func (bc *BoxCollider) CollisionPoints(center mgl64.Vec2) []mgl64.Vec2 {
	if bc.Width <= 1 && bc.Depth <= 1 {
		return []mgl64.Vec2{center}
	}

	halfWidth := bc.Width / 2
	halfDepth := bc.Depth / 2
	// Углы сдвинуты внутрь, чтобы не попадать в соседнюю колонку на границе
	const inset = 1e-3

	return []mgl64.Vec2{
		{center.X() - halfWidth + inset, center.Y() - halfDepth + inset},
		{center.X() + halfWidth - inset, center.Y() - halfDepth + inset},
		{center.X() - halfWidth + inset, center.Y() + halfDepth - inset},
		{center.X() + halfWidth - inset, center.Y() + halfDepth - inset},
		center,
	}
}

// SurfaceFunc возвращает высоту поверхности в абсолютной точке (h, v); ok == false — поверхности нет
type SurfaceFunc func(h, v float64) (float32, bool)

// SurfaceUnder возвращает наибольшую высоту поверхности под коллайдером
func SurfaceUnder(center mgl64.Vec2, collider *BoxCollider, surface SurfaceFunc) (float32, bool) {
	var (
		best  float32
		found bool
	)
	for _, p := range collider.CollisionPoints(center) {
		d, ok := surface(p.X(), p.Y())
		if !ok {
			continue
		}
		if !found || d > best {
			best = d
			found = true
		}
	}
	return best, found
}
