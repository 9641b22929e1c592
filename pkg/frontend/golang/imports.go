package golang

import (
	"bytes"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"
)

// AddImports adds the import paths a rewrite needs to src and reformats the
// file. Paths already imported are left alone.
func AddImports(name string, src []byte, paths []string) ([]byte, error) {
	if len(paths) == 0 {
		return src, nil
	}

	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	changed := false
	for _, path := range paths {
		changed = astutil.AddImport(fset, file, path) || changed
	}

	if !changed {
		return src, nil
	}

	var buf bytes.Buffer

	err = format.Node(&buf, fset, file)
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}

	return buf.Bytes(), nil
}
