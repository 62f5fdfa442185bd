package model

import (
	"fmt"
	"math"
)

// Node — узел дерева в плоском представлении (как tree_ у sklearn).
// Лист: Left == -1 и Right == -1. Переход влево при x[Feature] <= Threshold.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

func (n Node) isLeaf() bool { return n.Left < 0 && n.Right < 0 }

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// leaf спускается от корня. Корректность индексов гарантирует validate.
func (t Tree) leaf(x []float64) Node {
	i := 0
	for {
		n := t.Nodes[i]
		if n.isLeaf() {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate проверяет индексы признаков и детей и ширину значений в листьях.
// Дети всегда правее родителя, поэтому спуск конечен.
func (t Tree) validate(nFeatures, valueWidth int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.isLeaf() {
			if len(n.Value) != valueWidth {
				return fmt.Errorf("leaf %d: value width %d, want %d", i, len(n.Value), valueWidth)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature index %d out of range [0,%d)", i, n.Feature, nFeatures)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d: child index %d out of range (%d,%d)", i, child, i, len(t.Nodes))
			}
		}
	}
	return nil
}

// checkCounts: в листьях леса лежат доли/количества объектов классов, они не бывают отрицательными.
func (t Tree) checkCounts() error {
	for i, n := range t.Nodes {
		if !n.isLeaf() {
			continue
		}
		for k, v := range n.Value {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("leaf %d: class %d count %v must be finite and non-negative", i, k, v)
			}
		}
	}
	return nil
}
