package bundle

import "fmt"

// Tensor is a named dense value block decoded to float32.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// Elems returns the element count implied by the shape.
func (t Tensor) Elems() int {
	n := 1
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

func (t Tensor) validate() error {
	for _, dim := range t.Shape {
		if dim <= 0 {
			return fmt.Errorf("tensor %s: non-positive dimension in shape %v", t.Name, t.Shape)
		}
	}
	if len(t.Data) != t.Elems() {
		return fmt.Errorf("tensor %s: shape %v implies %d elements, have %d", t.Name, t.Shape, t.Elems(), len(t.Data))
	}
	return nil
}
