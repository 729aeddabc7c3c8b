package block

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrUnknownDefinition возвращается при обращении к незарегистрированному определению
var ErrUnknownDefinition = errors.New("unknown block definition")

// Встроенные определения. Регистрируются в NewDefinitions в этом порядке.
const (
	AirID   uint16 = iota // 0
	StoneID               // 1
	GrassID               // 2
	WaterID               // 3
	SandID                // 4
	DirtID                // 5
)

// Definition описывает тип блока (материал). Опубликованное определение не меняется.
type Definition struct {
	Name   string `yaml:"name"`
	Opaque bool   `yaml:"opaque"`
}

// Definitions — общая таблица определений блоков, только на добавление.
// Чтение без блокировок: читатели получают снимок среза через atomic.Pointer.
type Definitions struct {
	mu     sync.Mutex // сериализует только вставку
	items  atomic.Pointer[[]Definition]
	byName map[string]uint16
}

// NewDefinitions создаёт таблицу со встроенными определениями
func NewDefinitions() *Definitions {
	d := &Definitions{byName: make(map[string]uint16)}
	empty := make([]Definition, 0, 16)
	d.items.Store(&empty)

	for _, def := range []Definition{
		{Name: "air", Opaque: false},
		{Name: "stone", Opaque: true},
		{Name: "grass", Opaque: true},
		{Name: "water", Opaque: false},
		{Name: "sand", Opaque: true},
		{Name: "dirt", Opaque: true},
	} {
		d.Register(def)
	}
	return d
}

// Register добавляет определение и возвращает его индекс.
// Повторная регистрация имени возвращает существующий индекс.
func (d *Definitions) Register(def Definition) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.byName[def.Name]; ok {
		return id
	}

	cur := *d.items.Load()
	if len(cur) > 0xFFFF {
		panic("block: definition table overflow")
	}
	next := make([]Definition, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, def)
	id := uint16(len(cur))

	d.byName[def.Name] = id
	d.items.Store(&next)
	return id
}

// Definition возвращает определение по индексу
func (d *Definitions) Definition(id uint16) (Definition, error) {
	items := *d.items.Load()
	if int(id) >= len(items) {
		return Definition{}, fmt.Errorf("%w: %d", ErrUnknownDefinition, id)
	}
	return items[id], nil
}

// Lookup возвращает индекс определения по имени
func (d *Definitions) Lookup(name string) (uint16, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byName[name]
	return id, ok
}

// Len возвращает количество зарегистрированных определений
func (d *Definitions) Len() int {
	return len(*d.items.Load())
}

// Table — общая таблица уникальных блоков, на которую ссылаются кластеры.
// Индекс 0 всегда занят блоком Empty. Таблица только растёт.
type Table struct {
	defs *Definitions

	mu      sync.Mutex // сериализует только вставку
	blocks  atomic.Pointer[[]Block]
	indices map[Block]uint16
}

// NewTable создаёт таблицу блоков поверх таблицы определений
func NewTable(defs *Definitions) *Table {
	if defs == nil {
		defs = NewDefinitions()
	}
	t := &Table{
		defs:    defs,
		indices: map[Block]uint16{Empty: 0},
	}
	initial := []Block{Empty}
	t.blocks.Store(&initial)
	return t
}

// Definitions возвращает таблицу определений
func (t *Table) Definitions() *Definitions {
	return t.defs
}

// Intern возвращает индекс блока, добавляя его в таблицу при необходимости.
// Блок с пустой формой получает индекс 0 (Empty), его DefinitionID не сохраняется.
func (t *Table) Intern(b Block) uint16 {
	if b.Shape == ShapeEmpty {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if idx, ok := t.indices[b]; ok {
		return idx
	}

	cur := *t.blocks.Load()
	if len(cur) > 0xFFFF {
		panic("block: block table overflow")
	}
	next := make([]Block, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, b)
	idx := uint16(len(cur))

	t.indices[b] = idx
	t.blocks.Store(&next)
	return idx
}

// Get возвращает блок по индексу. Неопубликованный индекс — ошибка программы.
func (t *Table) Get(index uint16) Block {
	blocks := *t.blocks.Load()
	if int(index) >= len(blocks) {
		panic(fmt.Sprintf("block: index %d is not published (table size %d)", index, len(blocks)))
	}
	return blocks[index]
}

// Len возвращает количество блоков в таблице
func (t *Table) Len() int {
	return len(*t.blocks.Load())
}
