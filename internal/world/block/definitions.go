package block

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// definitionsFile — формат YAML-файла с описаниями блоков
type definitionsFile struct {
	Blocks []Definition `yaml:"blocks"`
}

// LoadDefinitions читает YAML-файл с определениями блоков и регистрирует их по порядку.
// Возвращает индексы зарегистрированных определений.
func LoadDefinitions(path string, defs *Definitions) ([]uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения определений блоков: %w", err)
	}
	return ParseDefinitions(data, defs)
}

// ParseDefinitions разбирает YAML с определениями блоков
func ParseDefinitions(data []byte, defs *Definitions) ([]uint16, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ошибка разбора определений блоков: %w", err)
	}

	ids := make([]uint16, 0, len(file.Blocks))
	for i, def := range file.Blocks {
		if def.Name == "" {
			return ids, fmt.Errorf("определение #%d: пустое имя", i)
		}
		ids = append(ids, defs.Register(def))
	}
	return ids, nil
}
