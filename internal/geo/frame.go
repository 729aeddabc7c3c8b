package geo

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Origin — смещение локальной системы координат в блоках мира
type Origin struct {
	H int64
	V int64
}

// String возвращает строковое представление смещения
func (o Origin) String() string {
	return fmt.Sprintf("[%d,%d]", o.H, o.V)
}

// OriginChange — событие смены начала координат
type OriginChange struct {
	Old     Origin
	New     Origin
	Version uint64
}

// Shift возвращает вектор, который нужно прибавить к локальным координатам,
// чтобы они указывали на ту же точку мира после смены начала.
func (c OriginChange) Shift() mgl32.Vec3 {
	return mgl32.Vec3{float32(c.Old.H - c.New.H), 0, float32(c.Old.V - c.New.V)}
}

// Frame хранит начало координат наблюдателя и его версию.
// Локальная координата X соответствует h, Z — v, Y — глубине d.
type Frame struct {
	mu      sync.RWMutex
	origin  Origin
	version uint64
}

// Origin возвращает текущее начало координат
func (f *Frame) Origin() Origin {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.origin
}

// Version возвращает число смен начала координат
func (f *Frame) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// ToAbsolute переводит локальную позицию в абсолютные координаты блоков (h, v)
func (f *Frame) ToAbsolute(local mgl32.Vec3) (h, v float64) {
	o := f.Origin()
	return float64(local.X()) + float64(o.H), float64(local.Z()) + float64(o.V)
}

// AbsoluteBlock возвращает абсолютные координаты блока под локальной позицией
func (f *Frame) AbsoluteBlock(local mgl32.Vec3) (h, v int64) {
	o := f.Origin()
	return int64(math.Floor(float64(local.X()))) + o.H, int64(math.Floor(float64(local.Z()))) + o.V
}

// ToLocal переводит абсолютные координаты блоков в локальную позицию на глубине d
func (f *Frame) ToLocal(h, v, d float64) mgl32.Vec3 {
	o := f.Origin()
	return mgl32.Vec3{float32(h - float64(o.H)), float32(d), float32(v - float64(o.V))}
}

// set устанавливает новое начало координат и увеличивает версию
func (f *Frame) set(origin Origin) OriginChange {
	f.mu.Lock()
	defer f.mu.Unlock()

	change := OriginChange{Old: f.origin, New: origin}
	f.origin = origin
	f.version++
	change.Version = f.version
	return change
}

// snapDown округляет x вниз до кратного step
func snapDown(x, step int64) int64 {
	q := x / step
	if x%step != 0 && x < 0 {
		q--
	}
	return q * step
}
