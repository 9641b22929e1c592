// Package frontend selects a host language adapter by name or file
// extension and gives the Go and Java front ends one shape.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/exfang/pkg/frontend/golang"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend/java"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
	"github.com/Sumatoshi-tech/exfang/pkg/typesys"
)

// ErrUnknownLanguage is returned for a language or extension no front end handles.
var ErrUnknownLanguage = errors.New("unknown language")

// Frontend parses host sources and template examples for one language.
type Frontend interface {
	Language() string
	Extensions() []string
	Hierarchy() typesys.Hierarchy
	ParseSource(ctx context.Context, name string, src []byte) (*tree.Unit, error)
	CompileExamples(ctx context.Context, name string, src []byte) ([]*pattern.Template, error)
	AddImports(ctx context.Context, name string, src []byte, paths []string) ([]byte, error)
}

// Languages lists the supported language names.
func Languages() []string {
	return []string{golang.Language, java.Language}
}

// New returns the front end for language.
func New(language string) (Frontend, error) {
	switch strings.ToLower(language) {
	case golang.Language, "golang":
		return newGo(), nil
	case java.Language:
		fe, err := newJava()
		if err != nil {
			return nil, err
		}

		return fe, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}
}

// ForPath returns the front end handling the extension of path.
func ForPath(path string) (Frontend, error) {
	switch filepath.Ext(path) {
	case ".go":
		return New(golang.Language)
	case ".java":
		return New(java.Language)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, path)
	}
}

// Set caches one front end per language so hierarchies accumulate across files.
type Set struct {
	language string

	mu    sync.Mutex
	cache map[string]Frontend
}

// NewSet returns a Set. A non-empty language forces every path to that front end.
func NewSet(language string) *Set {
	return &Set{language: language, cache: make(map[string]Frontend)}
}

// For returns the cached front end for path.
func (s *Set) For(path string) (Frontend, error) {
	language := s.language
	if language == "" {
		fe, err := ForPath(path)
		if err != nil {
			return nil, err
		}

		language = fe.Language()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if fe, ok := s.cache[language]; ok {
		return fe, nil
	}

	fe, err := New(language)
	if err != nil {
		return nil, err
	}

	s.cache[language] = fe

	return fe, nil
}

// Supported reports whether some front end handles path.
func (s *Set) Supported(path string) bool {
	if s.language != "" {
		fe, err := s.For(path)
		if err != nil {
			return false
		}

		for _, ext := range fe.Extensions() {
			if filepath.Ext(path) == ext {
				return true
			}
		}

		return false
	}

	_, err := ForPath(path)

	return err == nil
}

type goFrontend struct {
	parser    *golang.Parser
	hierarchy typesys.Hierarchy
}

func newGo() *goFrontend {
	p := golang.NewParser()

	return &goFrontend{parser: p, hierarchy: typesys.Chain(p.Hierarchy, typesys.DefaultLattice())}
}

func (f *goFrontend) Language() string     { return golang.Language }
func (f *goFrontend) Extensions() []string { return []string{".go"} }

func (f *goFrontend) Hierarchy() typesys.Hierarchy {
	return f.hierarchy
}

func (f *goFrontend) ParseSource(_ context.Context, name string, src []byte) (*tree.Unit, error) {
	return f.parser.ParseSource(name, src)
}

func (f *goFrontend) CompileExamples(_ context.Context, name string, src []byte) ([]*pattern.Template, error) {
	return f.parser.CompileExamples(name, src)
}

func (f *goFrontend) AddImports(_ context.Context, name string, src []byte, paths []string) ([]byte, error) {
	return golang.AddImports(name, src, paths)
}

type javaFrontend struct {
	parser *java.Parser
}

func newJava() (*javaFrontend, error) {
	p, err := java.NewParser()
	if err != nil {
		return nil, err
	}

	return &javaFrontend{parser: p}, nil
}

func (f *javaFrontend) Language() string     { return java.Language }
func (f *javaFrontend) Extensions() []string { return []string{".java"} }

func (f *javaFrontend) Hierarchy() typesys.Hierarchy {
	return f.parser.Hierarchy
}

func (f *javaFrontend) ParseSource(ctx context.Context, name string, src []byte) (*tree.Unit, error) {
	return f.parser.ParseSource(ctx, name, src)
}

func (f *javaFrontend) CompileExamples(ctx context.Context, name string, src []byte) ([]*pattern.Template, error) {
	return f.parser.CompileExamples(ctx, name, src)
}

func (f *javaFrontend) AddImports(ctx context.Context, name string, src []byte, paths []string) ([]byte, error) {
	return f.parser.AddImports(ctx, name, src, paths)
}
