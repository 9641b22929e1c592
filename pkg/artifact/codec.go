package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/safeconv"
)

// Node flag bits.
const (
	flagType byte = 1 << iota
	flagRef
	flagVariadic
	flagExact
	flagConstraint
)

// Template flag bits (version 2 and later).
const (
	templateNonIdempotent byte = 1 << iota
)

// maxDepth bounds node nesting accepted by the decoder.
const maxDepth = 4096

type encoder struct {
	buf     bytes.Buffer
	version uint16
}

func (e *encoder) uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], v)
	e.buf.Write(tmp[:n])
}

func (e *encoder) count(n int) {
	e.uvarint(safeconv.MustIntToUint64(n))
}

func (e *encoder) str(s string) {
	e.count(len(s))
	e.buf.WriteString(s)
}

func (e *encoder) strs(list []string) {
	e.count(len(list))

	for _, s := range list {
		e.str(s)
	}
}

func (e *encoder) template(t *pattern.Template) {
	e.str(t.Name)

	e.count(len(t.Placeholders))

	for _, decl := range t.Placeholders {
		e.str(decl.Name)
		e.buf.WriteByte(constraintFlags(decl.Constraint, decl.Variadic))
		e.strs(decl.Constraint.Types)
	}

	e.nodes(t.Befores)
	e.nodes(t.Afters)

	if e.version < 2 {
		return
	}

	e.strs(t.Imports)

	var flags byte
	if t.NonIdempotent {
		flags |= templateNonIdempotent
	}

	e.buf.WriteByte(flags)
}

func (e *encoder) nodes(list []*pattern.Node) {
	e.count(len(list))

	for _, root := range list {
		e.node(root)
	}
}

// node writes the tree in pre-order. Nil children are skipped.
func (e *encoder) node(root *pattern.Node) {
	stack := []*pattern.Node{root}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == nil {
			e.buf.WriteByte(byte(pattern.KindInvalid))

			continue
		}

		flags := constraintFlags(current.Constraint, current.Variadic)
		if current.Type != "" {
			flags |= flagType
		}

		if current.Ref != "" {
			flags |= flagRef
		}

		e.buf.WriteByte(byte(current.Kind))
		e.buf.WriteByte(flags)
		e.str(current.Token)

		if flags&flagType != 0 {
			e.str(current.Type)
		}

		if flags&flagRef != 0 {
			e.str(current.Ref)
		}

		if flags&flagConstraint != 0 {
			e.strs(current.Constraint.Types)
		}

		children := make([]*pattern.Node, 0, len(current.Children))

		for _, child := range current.Children {
			if child != nil {
				children = append(children, child)
			}
		}

		e.count(len(children))

		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

func constraintFlags(c pattern.Constraint, variadic bool) byte {
	var flags byte

	if variadic {
		flags |= flagVariadic
	}

	if c.Exact {
		flags |= flagExact
	}

	if !c.IsTop() {
		flags |= flagConstraint
	}

	return flags
}

type decoder struct {
	data    []byte
	pos     int
	version uint16
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, malformed("unexpected end of data")
	}

	b := d.data[d.pos]
	d.pos++

	return b, nil
}

func (d *decoder) count() (int, error) {
	v, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 {
		return 0, malformed("bad varint")
	}

	d.pos += n

	size, ok := safeconv.Uint64ToInt(v)
	if !ok || size > len(d.data)-d.pos {
		// Every counted item takes at least one byte.
		return 0, malformed(fmt.Sprintf("count %d exceeds remaining data", v))
	}

	return size, nil
}

func (d *decoder) str() (string, error) {
	size, err := d.count()
	if err != nil {
		return "", err
	}

	s := string(d.data[d.pos : d.pos+size])
	d.pos += size

	return s, nil
}

func (d *decoder) strs() ([]string, error) {
	size, err := d.count()
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return nil, nil
	}

	list := make([]string, 0, size)

	for range size {
		s, strErr := d.str()
		if strErr != nil {
			return nil, strErr
		}

		list = append(list, s)
	}

	return list, nil
}

func (d *decoder) template() (*pattern.Template, error) {
	name, err := d.str()
	if err != nil {
		return nil, err
	}

	t := &pattern.Template{Name: name}

	t.Placeholders, err = d.placeholders()
	if err != nil {
		return nil, err
	}

	t.Befores, err = d.nodes()
	if err != nil {
		return nil, err
	}

	t.Afters, err = d.nodes()
	if err != nil {
		return nil, err
	}

	if d.version < 2 {
		return t, nil
	}

	t.Imports, err = d.strs()
	if err != nil {
		return nil, err
	}

	flags, err := d.readByte()
	if err != nil {
		return nil, err
	}

	t.NonIdempotent = flags&templateNonIdempotent != 0

	return t, nil
}

func (d *decoder) placeholders() ([]pattern.Placeholder, error) {
	size, err := d.count()
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return nil, nil
	}

	decls := make([]pattern.Placeholder, 0, size)

	for range size {
		name, nameErr := d.str()
		if nameErr != nil {
			return nil, nameErr
		}

		flags, flagErr := d.readByte()
		if flagErr != nil {
			return nil, flagErr
		}

		types, typesErr := d.strs()
		if typesErr != nil {
			return nil, typesErr
		}

		decls = append(decls, pattern.Placeholder{
			Name:       name,
			Constraint: pattern.Constraint{Types: types, Exact: flags&flagExact != 0},
			Variadic:   flags&flagVariadic != 0,
		})
	}

	return decls, nil
}

func (d *decoder) nodes() ([]*pattern.Node, error) {
	size, err := d.count()
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return nil, nil
	}

	list := make([]*pattern.Node, 0, size)

	for range size {
		root, nodeErr := d.node()
		if nodeErr != nil {
			return nil, nodeErr
		}

		list = append(list, root)
	}

	return list, nil
}

// node reads one pre-order tree with an explicit stack of nodes still
// waiting for children.
func (d *decoder) node() (*pattern.Node, error) {
	type pending struct {
		node      *pattern.Node
		remaining int
	}

	var (
		root  *pattern.Node
		stack []pending
	)

	for {
		current, children, err := d.header()
		if err != nil {
			return nil, err
		}

		if root == nil {
			root = current
		} else {
			parent := &stack[len(stack)-1]
			parent.node.Children = append(parent.node.Children, current)
			parent.remaining--
		}

		if children > 0 {
			if len(stack) >= maxDepth {
				return nil, malformed("nesting too deep")
			}

			current.Children = make([]*pattern.Node, 0, children)
			stack = append(stack, pending{node: current, remaining: children})
		}

		for len(stack) > 0 && stack[len(stack)-1].remaining == 0 {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			return root, nil
		}
	}
}

func (d *decoder) header() (*pattern.Node, int, error) {
	kindByte, err := d.readByte()
	if err != nil {
		return nil, 0, err
	}

	kind := pattern.Kind(kindByte)
	if !kind.Valid() {
		return nil, 0, malformed(fmt.Sprintf("unknown node kind %d", kindByte))
	}

	flags, err := d.readByte()
	if err != nil {
		return nil, 0, err
	}

	current := &pattern.Node{
		Kind:     kind,
		Variadic: flags&flagVariadic != 0,
	}
	current.Constraint.Exact = flags&flagExact != 0

	current.Token, err = d.str()
	if err != nil {
		return nil, 0, err
	}

	if flags&flagType != 0 {
		current.Type, err = d.str()
		if err != nil {
			return nil, 0, err
		}
	}

	if flags&flagRef != 0 {
		current.Ref, err = d.str()
		if err != nil {
			return nil, 0, err
		}
	}

	if flags&flagConstraint != 0 {
		current.Constraint.Types, err = d.strs()
		if err != nil {
			return nil, 0, err
		}
	}

	children, err := d.count()
	if err != nil {
		return nil, 0, err
	}

	return current, children, nil
}
