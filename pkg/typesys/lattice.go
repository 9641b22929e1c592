package typesys

// Lattice is a declared supertype graph. It is mutable only through Declare
// and Top while being built; after that it is read-only and safe to share.
type Lattice struct {
	supers  map[string][]string
	numeric map[string]bool
	tops    map[string]bool
}

var goNumerics = []string{
	"int", "int8", "int16", "int32", "int64",
	"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
	"float32", "float64", "complex64", "complex128",
	"byte", "rune",
	"untyped int", "untyped float", "untyped rune", "untyped complex",
}

var javaNumerics = []string{
	"byte", "short", "char", "int", "long", "float", "double",
	"Byte", "Short", "Character", "Integer", "Long", "Float", "Double",
	"java.lang.Byte", "java.lang.Short", "java.lang.Character", "java.lang.Integer",
	"java.lang.Long", "java.lang.Float", "java.lang.Double",
	"BigInteger", "BigDecimal", "java.math.BigInteger", "java.math.BigDecimal",
}

// javaDefaults lists widening primitive conversions and the common library
// supertypes templates tend to mention.
var javaDefaults = map[string][]string{
	"byte":  {"short"},
	"short": {"int"},
	"char":  {"int"},
	"int":   {"long"},
	"long":  {"float"},
	"float": {"double"},

	"Integer":    {"Number", "Comparable"},
	"Long":       {"Number", "Comparable"},
	"Short":      {"Number", "Comparable"},
	"Byte":       {"Number", "Comparable"},
	"Double":     {"Number", "Comparable"},
	"Float":      {"Number", "Comparable"},
	"BigInteger": {"Number", "Comparable"},
	"BigDecimal": {"Number", "Comparable"},
	"String":     {"CharSequence", "Comparable"},

	"StringBuilder": {"CharSequence"},
	"ArrayList":     {"List"},
	"LinkedList":    {"List", "Deque"},
	"List":          {"Collection"},
	"HashSet":       {"Set"},
	"TreeSet":       {"SortedSet"},
	"SortedSet":     {"Set"},
	"Set":           {"Collection"},
	"Deque":         {"Queue"},
	"Queue":         {"Collection"},
	"Collection":    {"Iterable"},
	"HashMap":       {"Map"},
	"TreeMap":       {"SortedMap"},
	"SortedMap":     {"Map"},

	"java.lang.Integer":    {"java.lang.Number"},
	"java.lang.Long":       {"java.lang.Number"},
	"java.lang.Double":     {"java.lang.Number"},
	"java.lang.String":     {"java.lang.CharSequence"},
	"java.util.ArrayList":  {"java.util.List"},
	"java.util.List":       {"java.util.Collection"},
	"java.util.HashSet":    {"java.util.Set"},
	"java.util.Set":        {"java.util.Collection"},
	"java.util.Collection": {"java.lang.Iterable"},
	"java.util.HashMap":    {"java.util.Map"},
}

// NewLattice returns an empty lattice.
func NewLattice() *Lattice {
	return &Lattice{
		supers:  make(map[string][]string),
		numeric: make(map[string]bool),
		tops:    make(map[string]bool),
	}
}

// DefaultLattice returns a lattice preloaded with Go and Java numeric types,
// Java widening conversions, common library supertypes, and the universal
// supertypes Object, java.lang.Object, any and interface{}.
func DefaultLattice() *Lattice {
	lattice := NewLattice()

	for _, name := range goNumerics {
		lattice.numeric[name] = true
	}

	for _, name := range javaNumerics {
		lattice.numeric[name] = true
	}

	for name, supers := range javaDefaults {
		lattice.Declare(name, supers...)
	}

	lattice.Top("Object", "java.lang.Object", "any", "interface{}")

	return lattice
}

// Declare records direct supertypes of typ and returns the lattice.
func (l *Lattice) Declare(typ string, supers ...string) *Lattice {
	l.supers[typ] = append(l.supers[typ], supers...)

	return l
}

// DeclareNumeric marks types as numeric and returns the lattice.
func (l *Lattice) DeclareNumeric(types ...string) *Lattice {
	for _, typ := range types {
		l.numeric[typ] = true
	}

	return l
}

// Top marks types every other type is assignable to and returns the lattice.
func (l *Lattice) Top(types ...string) *Lattice {
	for _, typ := range types {
		l.tops[typ] = true
	}

	return l
}

// Assignable reports whether to is reachable from from in the supertype graph.
func (l *Lattice) Assignable(from, to string) bool {
	if from == to || l.tops[to] {
		return true
	}

	seen := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, super := range l.supers[current] {
			if super == to {
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

// Numeric reports whether typ was declared numeric.
func (l *Lattice) Numeric(typ string) bool {
	return l.numeric[typ]
}
