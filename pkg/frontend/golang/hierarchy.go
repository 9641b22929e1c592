package golang

import (
	"go/types"
	"strings"
	"sync"
)

// Hierarchy answers subtype queries for the type strings the converter
// produced, using go/types assignability. Types named but never seen resolve
// through the packages recorded alongside them.
type Hierarchy struct {
	mu       sync.RWMutex
	types    map[string]types.Type
	packages map[string]*types.Package
}

// NewHierarchy returns an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		types:    make(map[string]types.Type),
		packages: make(map[string]*types.Package),
	}
}

func (h *Hierarchy) record(name string, t types.Type) {
	if h == nil || name == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.types[name]; !ok {
		h.types[name] = t
	}
}

func (h *Hierarchy) recordPackages(pkgs []*types.Package) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, pkg := range pkgs {
		if _, ok := h.packages[pkg.Name()]; !ok {
			h.packages[pkg.Name()] = pkg
		}
	}
}

// lookup resolves name to a type: a recorded type, a universe type or an
// exported type of a recorded package.
func (h *Hierarchy) lookup(name string) types.Type {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if t, ok := h.types[name]; ok {
		return t
	}

	if obj := types.Universe.Lookup(name); obj != nil {
		if tn, ok := obj.(*types.TypeName); ok {
			return tn.Type()
		}
	}

	pkgName, typeName, ok := strings.Cut(name, ".")
	if !ok {
		return nil
	}

	pkg := h.packages[strings.TrimPrefix(pkgName, "*")]
	if pkg == nil {
		return nil
	}

	tn, ok := pkg.Scope().Lookup(typeName).(*types.TypeName)
	if !ok {
		return nil
	}

	if strings.HasPrefix(pkgName, "*") {
		return types.NewPointer(tn.Type())
	}

	return tn.Type()
}

// Assignable reports whether a value of type from is assignable to to.
func (h *Hierarchy) Assignable(from, to string) bool {
	if from == to {
		return true
	}

	ft, tt := h.lookup(from), h.lookup(to)
	if ft == nil || tt == nil {
		return false
	}

	return types.AssignableTo(ft, tt)
}

// Numeric reports whether typ has a numeric underlying type.
func (h *Hierarchy) Numeric(typ string) bool {
	t := h.lookup(typ)
	if t == nil {
		return false
	}

	basic, ok := t.Underlying().(*types.Basic)

	return ok && basic.Info()&types.IsNumeric != 0
}
