package export

import "github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"

// Matrix is the square dependency matrix over the currently shown elements. Rows
// are providers and columns consumers: Weights[row][col] is the aggregated weight
// of the column element depending on the row element.
type Matrix struct {
	Elements []*model.Element
	Depths   []int
	Weights  [][]int
}

// BuildMatrix walks the visible tree in order. An expanded element with visible
// children is replaced by its children; every other element becomes one row.
func BuildMatrix(el *model.ElementModel) *Matrix {
	mx := &Matrix{}
	var walk func(e *model.Element, depth int)
	walk = func(e *model.Element, depth int) {
		if e.IsExpanded() && e.HasChildren() {
			for _, c := range e.Children() {
				walk(c, depth+1)
			}
			return
		}
		mx.Elements = append(mx.Elements, e)
		mx.Depths = append(mx.Depths, depth)
	}
	for _, e := range el.RootElements() {
		walk(e, 0)
	}

	n := len(mx.Elements)
	mx.Weights = make([][]int, n)
	for row, provider := range mx.Elements {
		mx.Weights[row] = make([]int, n)
		for col, consumer := range mx.Elements {
			if row != col {
				mx.Weights[row][col] = consumer.AggregatedWeight(provider.ID())
			}
		}
	}
	return mx
}

// Cycles reports whether any pair of shown elements depends on each other.
func (mx *Matrix) Cycles() [][2]*model.Element {
	var pairs [][2]*model.Element
	for i := range mx.Elements {
		for j := i + 1; j < len(mx.Elements); j++ {
			if mx.Weights[i][j] > 0 && mx.Weights[j][i] > 0 {
				pairs = append(pairs, [2]*model.Element{mx.Elements[i], mx.Elements[j]})
			}
		}
	}
	return pairs
}
