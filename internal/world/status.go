package world

// Status — этап жизненного цикла кластера
type Status uint8

const (
	StatusRaw             Status = iota // Блоки ещё не сгенерированы
	StatusGenerated                     // Блоки есть, меша нет
	StatusGeometryPending               // Построение меша запущено
	StatusGeometryCreated               // Меш построен, но не передан рендереру
	StatusGeometryBound                 // Меш привязан и виден
)

// String возвращает имя статуса
func (s Status) String() string {
	switch s {
	case StatusRaw:
		return "Raw"
	case StatusGenerated:
		return "Generated"
	case StatusGeometryPending:
		return "GeometryPending"
	case StatusGeometryCreated:
		return "GeometryCreated"
	case StatusGeometryBound:
		return "GeometryBound"
	default:
		return "Unknown"
	}
}

// Status возвращает текущий статус
func (c *Cluster) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// NeedsBinding сообщает, запрошена ли привязка меша в текущем цикле
func (c *Cluster) NeedsBinding() bool {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.needBinding
}

// Cycle возвращает номер текущего цикла; увеличивается при каждом DirtyGeo
func (c *Cluster) Cycle() uint64 {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.cycle
}

// advance переводит статус from → to под блокировкой
func (c *Cluster) advance(from, to Status) bool {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	if c.status != from {
		return false
	}
	c.status = to
	return true
}

// FinalizeGeneration отмечает, что генератор мира заполнил блоки (Raw → Generated)
func (c *Cluster) FinalizeGeneration() bool {
	return c.advance(StatusRaw, StatusGenerated)
}

// BeginGeometry — шлюз диспетчеризации (Generated → GeometryPending).
// Только вызвавший, получивший true, запускает построение меша.
func (c *Cluster) BeginGeometry() bool {
	return c.advance(StatusGenerated, StatusGeometryPending)
}

// StartGeo отмечает, что меш построен (GeometryPending → GeometryCreated)
func (c *Cluster) StartGeo() bool {
	return c.advance(StatusGeometryPending, StatusGeometryCreated)
}

// UpdateGeo устанавливает построенный меш и переводит кластер в GeometryCreated.
// Если кластер уже не в GeometryPending, меш отбрасывается и возвращается false.
func (c *Cluster) UpdateGeo(geo Geometry) bool {
	return c.installGeo(geo, 0, false)
}

// UpdateGeoCycle работает как UpdateGeo, но дополнительно отбрасывает меш,
// если с момента чтения Cycle() кластер успел стать «грязным».
func (c *Cluster) UpdateGeoCycle(geo Geometry, cycle uint64) bool {
	return c.installGeo(geo, cycle, true)
}

func (c *Cluster) installGeo(geo Geometry, cycle uint64, checkCycle bool) bool {
	c.statusMu.Lock()
	if c.status != StatusGeometryPending || (checkCycle && c.cycle != cycle) {
		c.statusMu.Unlock()
		return false
	}
	c.geoMu.Lock()
	c.geometry = geo
	c.geoMu.Unlock()
	c.status = StatusGeometryCreated
	c.statusMu.Unlock()

	c.geoRefresh.Emit(c)
	return true
}

// FinalizeBind отмечает, что меш привязан к сцене (GeometryCreated → GeometryBound).
// Флаг привязки сбрасывается в той же критической секции.
func (c *Cluster) FinalizeBind() bool {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	if c.status != StatusGeometryCreated {
		return false
	}
	c.status = StatusGeometryBound
	c.needBinding = false
	return true
}

// RequestBinding запрашивает привязку меша. Возвращает true и поднимает GeoRefresh
// только при первом вызове в цикле; повторные вызовы ничего не делают.
// Запрос принимается только в статусе GeometryCreated: проверка статуса и
// установка флага происходят в одной критической секции.
func (c *Cluster) RequestBinding() bool {
	c.statusMu.Lock()
	if c.status != StatusGeometryCreated || c.needBinding {
		c.statusMu.Unlock()
		return false
	}
	c.needBinding = true
	c.statusMu.Unlock()

	c.geoRefresh.Emit(c)
	return true
}

// DirtyGeo сбрасывает устаревший меш и возвращает кластер в Generated.
// Единственный разрешённый переход назад; для Raw ничего не делает.
func (c *Cluster) DirtyGeo() bool {
	c.statusMu.Lock()
	if c.status == StatusRaw {
		c.statusMu.Unlock()
		return false
	}
	c.geoMu.Lock()
	c.geometry = nil
	c.geoMu.Unlock()
	c.status = StatusGenerated
	c.needBinding = false
	c.cycle++
	c.statusMu.Unlock()

	c.dirty.Emit(c)
	return true
}

// GeoValid сообщает, есть ли у кластера меш
func (c *Cluster) GeoValid() bool {
	c.geoMu.Lock()
	defer c.geoMu.Unlock()
	return c.geometry != nil
}

// Geometry возвращает текущий меш или nil
func (c *Cluster) Geometry() Geometry {
	c.geoMu.Lock()
	defer c.geoMu.Unlock()
	return c.geometry
}
