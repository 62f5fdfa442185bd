package features

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptySchema = errors.New("features: schema is empty")

// Record — входящая запись "имя признака -> значение". Порядок ключей не важен.
type Record map[string]float64

// Schema — упорядоченный список признаков, на котором обучен классификатор.
// Позиция i в векторе модели соответствует Names()[i]. После создания не меняется.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema проверяет список (непустой, без пустых имен и дублей) и делает копию.
func NewSchema(names []string) (Schema, error) {
	if len(names) == 0 {
		return Schema{}, ErrEmptySchema
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return Schema{}, fmt.Errorf("features: empty feature name at position %d", i)
		}
		if prev, dup := index[name]; dup {
			return Schema{}, fmt.Errorf("features: duplicate feature %q at positions %d and %d", name, prev, i)
		}
		index[name] = i
	}

	cp := make([]string, len(names))
	copy(cp, names)
	return Schema{names: cp, index: index}, nil
}

// MustSchema для тестов и статических схем.
func MustSchema(names ...string) Schema {
	s, err := NewSchema(names)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSchema разбирает артефакт схемы: JSON-массив строк.
func ParseSchema(data []byte) (Schema, error) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return Schema{}, fmt.Errorf("features: schema must be a JSON array of strings: %w", err)
	}
	return NewSchema(names)
}

func (s Schema) Len() int { return len(s.names) }

// Names возвращает копию, чтобы вызывающий не мог испортить порядок.
func (s Schema) Names() []string {
	cp := make([]string, len(s.names))
	copy(cp, s.names)
	return cp
}

func (s Schema) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Position возвращает позицию признака в векторе или -1.
func (s Schema) Position(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.names)
}
