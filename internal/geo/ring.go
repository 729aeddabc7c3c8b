package geo

import "github.com/annel0/gridworld/internal/world"

// walkRing обходит кольцо радиуса r вокруг center с шагом в один кластер.
// Для r ≥ 1 выдаёт ровно 8r различных позиций: сначала середины сторон,
// затем симметричные пары вдоль сторон, последними — четыре угла.
// Радиус 0 выдаёт только центр.
func walkRing(center world.ClusterPos, r int, fn func(world.ClusterPos)) {
	if r < 0 {
		return
	}
	if r == 0 {
		fn(center)
		return
	}

	at := func(dh, dv int) world.ClusterPos {
		return center.Offset(int64(dh)*world.HVSize, int64(dv)*world.HVSize)
	}

	for i := 0; i < r; i++ {
		fn(at(r, i))
		fn(at(-r, i))
		fn(at(i, r))
		fn(at(i, -r))
		if i != 0 {
			fn(at(r, -i))
			fn(at(-r, -i))
			fn(at(-i, r))
			fn(at(-i, -r))
		}
	}

	fn(at(r, r))
	fn(at(-r, r))
	fn(at(r, -r))
	fn(at(-r, -r))
}

// Ring возвращает позиции кольца радиуса r в порядке обхода
func Ring(center world.ClusterPos, r int) []world.ClusterPos {
	if r < 0 {
		return nil
	}
	n := 8 * r
	if r == 0 {
		n = 1
	}
	out := make([]world.ClusterPos, 0, n)
	walkRing(center, r, func(p world.ClusterPos) { out = append(out, p) })
	return out
}
