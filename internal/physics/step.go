package physics

import "time"

// Параметры перемещения по поверхности (в блоках)
const (
	FallSpeed  = 8  // Скорость спуска, блоков в секунду
	ClimbSpeed = 20 // Скорость подъёма, блоков в секунду
	MaxStep    = 2  // Наибольший уступ, на который можно подняться
)

// Step приближает высоту current к поверхности surface за время dt.
// Спуск идёт со скоростью FallSpeed, подъём — ClimbSpeed, без перескока через поверхность.
// Уступ выше MaxStep не преодолевается: возвращается current и blocked == true,
// и вызывающий должен вернуть сущность на прежнюю позицию.
func Step(current, surface float32, dt time.Duration) (next float32, blocked bool) {
	seconds := float32(dt.Seconds())

	switch {
	case current > surface:
		next = current - seconds*FallSpeed
		if next < surface {
			next = surface
		}
		return next, false

	case current < surface:
		if surface-current > MaxStep {
			return current, true
		}
		next = current + seconds*ClimbSpeed
		if next > surface {
			next = surface
		}
		return next, false

	default:
		return current, false
	}
}
