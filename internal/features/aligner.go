package features

import "sort"

// DefaultValue подставляется вместо отсутствующего признака.
// Отсутствующий сигнал считается "нейтральным": запрос не отклоняется.
const DefaultValue = 0.0

// Align строит вектор для модели: позиция i = record[schema[i]] или def, если ключа нет.
// Лишние ключи записи игнорируются. Длина результата всегда равна schema.Len().
func Align(record Record, schema Schema, def float64) []float64 {
	vec := make([]float64, len(schema.names))
	for i, name := range schema.names {
		if v, ok := record[name]; ok {
			vec[i] = v
			continue
		}
		vec[i] = def
	}
	return vec
}

// CoverageReport — сколько признаков схемы реально пришло в записи.
type CoverageReport struct {
	Present int
	Missing int
}

// Ratio: доля присутствующих признаков, 0 для пустой схемы.
func (c CoverageReport) Ratio() float64 {
	total := c.Present + c.Missing
	if total == 0 {
		return 0
	}
	return float64(c.Present) / float64(total)
}

func Coverage(record Record, schema Schema) CoverageReport {
	var rep CoverageReport
	for _, name := range schema.names {
		if _, ok := record[name]; ok {
			rep.Present++
		} else {
			rep.Missing++
		}
	}
	return rep
}

// Unknown возвращает отсортированные ключи записи, которых нет ни в одной схеме.
func Unknown(record Record, schemas ...Schema) []string {
	var out []string
	for key := range record {
		known := false
		for _, s := range schemas {
			if s.Contains(key) {
				known = true
				break
			}
		}
		if !known {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
