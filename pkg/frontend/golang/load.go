package golang

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

// ErrNoPackages is returned when a package pattern matches nothing.
var ErrNoPackages = errors.New("no packages matched")

// Parser parses and type-checks single Go files against the packages
// installed in GOROOT and the module cache. Safe for concurrent use.
type Parser struct {
	// Hierarchy collects every type the parser has seen.
	Hierarchy *Hierarchy

	mu       sync.Mutex
	fset     *token.FileSet
	importer types.Importer
}

// NewParser returns a parser with a fresh hierarchy.
func NewParser() *Parser {
	fset := token.NewFileSet()

	return &Parser{
		Hierarchy: NewHierarchy(),
		fset:      fset,
		importer:  importer.ForCompiler(fset, "source", nil),
	}
}

type checked struct {
	file *ast.File
	info *types.Info
	pkg  *types.Package
}

// check parses src and type-checks it as a package of its own. Type errors
// leave parts of the file untyped but are not fatal.
func (p *Parser) check(name string, src []byte) (*checked, error) {
	file, err := parser.ParseFile(p.fset, name, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	info := &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
	}

	conf := types.Config{
		Importer: p.importer,
		Error:    func(error) {},
	}

	// The source importer caches packages and is not safe for concurrent use.
	p.mu.Lock()
	pkg, _ := conf.Check(file.Name.Name, p.fset, []*ast.File{file}, info) //nolint:errcheck // partial type info is still usable
	p.mu.Unlock()

	if pkg != nil {
		p.Hierarchy.recordPackages(pkg.Imports())
	}

	return &checked{file: file, info: info, pkg: pkg}, nil
}

// ParseSource converts one Go file into a unit.
func (p *Parser) ParseSource(name string, src []byte) (*tree.Unit, error) {
	c, err := p.check(name, src)
	if err != nil {
		return nil, err
	}

	return convertUnit(name, src, p.fset, c.file, c.info, p.Hierarchy), nil
}

// ParseFile reads and converts the Go file at path.
func (p *Parser) ParseFile(path string) (*tree.Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return p.ParseSource(path, src)
}

func convertUnit(name string, src []byte, fset *token.FileSet, file *ast.File, info *types.Info, h *Hierarchy) *tree.Unit {
	root := newConverter(fset, file, info, h).convertFile(file)

	return &tree.Unit{
		Name:     name,
		Language: Language,
		Tree:     tree.FromPattern(root),
		Source:   src,
		Imports:  importPaths(file),
	}
}

// LoadPackages loads the packages matching patterns under dir with full type
// information and converts each of their files. Units share h.
func LoadPackages(ctx context.Context, dir string, h *Hierarchy, patterns ...string) ([]*tree.Unit, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	if len(pkgs) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoPackages, patterns)
	}

	var units []*tree.Unit

	for _, pkg := range pkgs {
		if len(pkg.Syntax) == 0 && len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("load %s: %w", pkg.PkgPath, pkg.Errors[0])
		}

		if pkg.Types != nil {
			h.recordPackages(pkg.Types.Imports())
		}

		for idx, file := range pkg.Syntax {
			if idx >= len(pkg.CompiledGoFiles) {
				break
			}

			name := pkg.CompiledGoFiles[idx]

			src, readErr := os.ReadFile(name)
			if readErr != nil {
				return nil, fmt.Errorf("read %s: %w", name, readErr)
			}

			units = append(units, convertUnit(name, src, pkg.Fset, file, pkg.TypesInfo, h))
		}
	}

	return units, nil
}
