package block

// Shape определяет форму блока внутри ячейки.
// Форма полностью задаёт функцию высоты поверхности (см. HeightAt).
type Shape uint8

const (
	ShapeEmpty Shape = iota // Пустая ячейка, в запросах поверхности не участвует
	ShapeSolid              // Полный куб
	ShapeFluid              // Жидкость, поверхность на уровне верха ячейки

	// Полные рампы: название — сторона, в которую поднимается скат
	ShapeRampNorth
	ShapeRampSouth
	ShapeRampEast
	ShapeRampWest

	// Полублоки
	ShapeHalfUpper
	ShapeHalfLower

	// Полурампы в нижней половине ячейки [0, 0.5]
	ShapeHalfRampNorthLower
	ShapeHalfRampSouthLower
	ShapeHalfRampEastLower
	ShapeHalfRampWestLower

	// Полурампы в верхней половине ячейки [0.5, 1]
	ShapeHalfRampNorthUpper
	ShapeHalfRampSouthUpper
	ShapeHalfRampEastUpper
	ShapeHalfRampWestUpper

	shapeCount // всегда последний
)

var shapeNames = [shapeCount]string{
	"empty", "solid", "fluid",
	"ramp_north", "ramp_south", "ramp_east", "ramp_west",
	"half_upper", "half_lower",
	"half_ramp_north_lower", "half_ramp_south_lower", "half_ramp_east_lower", "half_ramp_west_lower",
	"half_ramp_north_upper", "half_ramp_south_upper", "half_ramp_east_upper", "half_ramp_west_upper",
}

// String возвращает имя формы
func (s Shape) String() string {
	if s < shapeCount {
		return shapeNames[s]
	}
	return "unknown"
}

// ParseShape возвращает форму по имени
func ParseShape(name string) (Shape, bool) {
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), true
		}
	}
	return ShapeEmpty, false
}

// IsRamp сообщает, является ли форма рампой (полной или половинной)
func (s Shape) IsRamp() bool {
	return (s >= ShapeRampNorth && s <= ShapeRampWest) ||
		(s >= ShapeHalfRampNorthLower && s <= ShapeHalfRampWestUpper)
}

// HeightAt возвращает высоту поверхности блока формы shape в точке (localX, localZ)
// внутри ячейки. Координаты ожидаются в [0, 1] и при выходе за пределы зажимаются.
// ok == false только для ShapeEmpty; любая другая форма возвращает высоту в [0, 1].
func HeightAt(shape Shape, localX, localZ float32) (height float32, ok bool) {
	h := clamp01(localX)
	v := clamp01(localZ)

	switch shape {
	case ShapeEmpty:
		return 0, false
	case ShapeSolid, ShapeFluid, ShapeHalfUpper:
		return 1, true
	case ShapeHalfLower:
		return 0.5, true

	case ShapeRampNorth, ShapeRampSouth, ShapeRampEast, ShapeRampWest:
		return rampHeight(shape-ShapeRampNorth, h, v), true

	case ShapeHalfRampNorthLower, ShapeHalfRampSouthLower, ShapeHalfRampEastLower, ShapeHalfRampWestLower:
		return 0.5 * rampHeight(shape-ShapeHalfRampNorthLower, h, v), true

	case ShapeHalfRampNorthUpper, ShapeHalfRampSouthUpper, ShapeHalfRampEastUpper, ShapeHalfRampWestUpper:
		return 0.5 + 0.5*rampHeight(shape-ShapeHalfRampNorthUpper, h, v), true
	}

	// Новые формы обязаны определить высоту в [0, 1]; до этого считаем их полными
	return 1, true
}

// rampHeight — линейная функция ската для направления facing (0=N, 1=S, 2=E, 3=W)
func rampHeight(facing Shape, h, v float32) float32 {
	switch facing {
	case 0:
		return v
	case 1:
		return 1 - v
	case 2:
		return h
	default:
		return 1 - h
	}
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
