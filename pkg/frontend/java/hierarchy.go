package java

import (
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/exfang/pkg/typesys"
)

// boxing pairs primitives with their wrapper classes; assignment boxes.
var boxing = map[string]string{
	"boolean": "Boolean",
	"byte":    "Byte",
	"short":   "Short",
	"char":    "Character",
	"int":     "Integer",
	"long":    "Long",
	"float":   "Float",
	"double":  "Double",
}

// Hierarchy is the supertype graph of the classes declared in parsed
// sources, layered over the library defaults of typesys.DefaultLattice.
type Hierarchy struct {
	mu     sync.RWMutex
	supers map[string][]string
	base   *typesys.Lattice
}

// NewHierarchy returns a hierarchy that knows boxing and the library
// defaults.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{supers: make(map[string][]string), base: typesys.DefaultLattice()}

	for primitive, boxed := range boxing {
		h.supers[primitive] = append(h.supers[primitive], boxed)
	}

	return h
}

func (h *Hierarchy) declare(class string, supers ...string) {
	if class == "" || len(supers) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.supers[class] = append(h.supers[class], supers...)
}

// Assignable reports whether from reaches to through declared supertypes,
// boxing or the library defaults.
func (h *Hierarchy) Assignable(from, to string) bool {
	if from == to || h.base.Assignable(from, to) {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, super := range h.supers[current] {
			if super == to || h.base.Assignable(super, to) {
				return true
			}

			if !seen[super] {
				seen[super] = true
				queue = append(queue, super)
			}
		}
	}

	return false
}

// Numeric reports whether typ is a numeric primitive or wrapper.
func (h *Hierarchy) Numeric(typ string) bool {
	return h.base.Numeric(typ)
}

// eraseType drops generic arguments and whitespace: "Map<K, List<V>>" is
// "Map", "List<String>[]" is "List[]".
func eraseType(text string) string {
	var buf strings.Builder

	depth := 0

	for _, r := range text {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth > 0, r == ' ', r == '\t', r == '\n', r == '\r':
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}

func elementType(typ string) string {
	elem, ok := strings.CutSuffix(typ, "[]")
	if !ok {
		return ""
	}

	return elem
}

var primitiveRank = map[string]int{
	"byte":   1,
	"short":  2,
	"char":   2,
	"int":    3,
	"long":   4,
	"float":  5,
	"double": 6,
}

func unbox(typ string) string {
	for primitive, boxed := range boxing {
		if typ == boxed || typ == "java.lang."+boxed {
			return primitive
		}
	}

	return typ
}

// promote applies binary numeric promotion; "" when either side is not
// numeric.
func promote(left, right string) string {
	left, right = unbox(left), unbox(right)

	_, lok := primitiveRank[left]
	_, rok := primitiveRank[right]

	if !lok || !rok {
		return ""
	}

	best := "int"

	for _, candidate := range []string{left, right} {
		if primitiveRank[candidate] > primitiveRank[best] {
			best = candidate
		}
	}

	return best
}

func isString(typ string) bool {
	return typ == "String" || typ == "java.lang.String"
}
