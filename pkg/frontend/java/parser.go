// Package java is the Java host front end. It parses Java with tree-sitter,
// infers declared and literal types, and reads Refaster-style template
// classes whose @BeforeTemplate and @AfterTemplate methods are the examples.
package java

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	javagrammar "github.com/alexaandru/go-sitter-forest/java"

	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

// Language is the unit language name of Java units.
const Language = "java"

var (
	// ErrSyntax is returned for sources tree-sitter could not parse cleanly.
	ErrSyntax = errors.New("java syntax error")

	errLanguageNotAvailable = errors.New("java grammar not available")
	errNoRootNode           = errors.New("no root node")
	errPoolType             = errors.New("unexpected parser pool entry")
)

var (
	languageOnce sync.Once
	language     *sitter.Language
)

func grammar() *sitter.Language {
	languageOnce.Do(func() {
		defer func() {
			_ = recover() //nolint:errcheck // recover() returns any, not error
		}()

		language = sitter.NewLanguage(javagrammar.GetLanguage())
	})

	return language
}

// Parser converts Java sources into units. Safe for concurrent use.
type Parser struct {
	// Hierarchy collects the class declarations of every parsed source.
	Hierarchy *Hierarchy

	pool sync.Pool
}

// NewParser returns a parser with a fresh hierarchy.
func NewParser() (*Parser, error) {
	lang := grammar()
	if lang == nil {
		return nil, errLanguageNotAvailable
	}

	return &Parser{
		Hierarchy: NewHierarchy(),
		pool: sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		},
	}, nil
}

// parse runs tree-sitter over src and hands the root to fn while the tree is
// alive.
func (p *Parser) parse(ctx context.Context, name string, src []byte, fn func(root sitter.Node) error) error {
	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return errPoolType
	}

	defer p.pool.Put(tsParser)

	parsed, err := tsParser.ParseString(ctx, nil, src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	defer parsed.Close()

	root := parsed.RootNode()
	if root.IsNull() {
		return fmt.Errorf("parse %s: %w", name, errNoRootNode)
	}

	if bad := findError(root); !bad.IsNull() {
		return fmt.Errorf("%w: %s:%d", ErrSyntax, name, bad.StartPoint().Row+1)
	}

	return fn(root)
}

func findError(n sitter.Node) sitter.Node {
	if n.Type() == "ERROR" {
		return n
	}

	for idx := range n.NamedChildCount() {
		if found := findError(n.NamedChild(idx)); !found.IsNull() {
			return found
		}
	}

	return sitter.Node{}
}

// ParseSource converts one Java compilation unit.
func (p *Parser) ParseSource(ctx context.Context, name string, src []byte) (*tree.Unit, error) {
	var unit *tree.Unit

	err := p.parse(ctx, name, src, func(root sitter.Node) error {
		c := newConverter(src, p.Hierarchy)
		c.collectImports(root)
		c.declareClasses(root)

		unit = &tree.Unit{
			Name:     name,
			Language: Language,
			Tree:     tree.FromPattern(c.program(root)),
			Source:   src,
			Imports:  c.importList,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return unit, nil
}

// ParseFile reads and converts the Java file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*tree.Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return p.ParseSource(ctx, path, src)
}
