package block

import "fmt"

// Block — неизменяемое содержимое одной ячейки: ссылка на определение и форма.
// Кластеры хранят не сами блоки, а их индексы в общей таблице (см. Table).
// У пустой формы нет материала: любой блок с ShapeEmpty хранится как Empty.
type Block struct {
	DefinitionID uint16 // Индекс в таблице определений (Definitions)
	Shape        Shape  // Форма блока
}

// Empty — содержимое ячейки по умолчанию
var Empty = Block{DefinitionID: AirID, Shape: ShapeEmpty}

// New создаёт блок с указанным определением и формой. Для ShapeEmpty возвращает Empty.
func New(definitionID uint16, shape Shape) Block {
	if shape == ShapeEmpty {
		return Empty
	}
	return Block{DefinitionID: definitionID, Shape: shape}
}

// IsEmpty возвращает true для пустой ячейки
func (b Block) IsEmpty() bool {
	return b.Shape == ShapeEmpty
}

// HeightAt возвращает высоту поверхности блока в локальной точке ячейки
func (b Block) HeightAt(localX, localZ float32) (float32, bool) {
	return HeightAt(b.Shape, localX, localZ)
}

// String возвращает строковое представление блока
func (b Block) String() string {
	return fmt.Sprintf("block(%d,%s)", b.DefinitionID, b.Shape)
}
