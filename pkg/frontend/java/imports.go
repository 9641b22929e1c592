package java

import (
	"bytes"
	"context"
	"slices"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/exfang/pkg/safeconv"
)

// AddImports inserts single-type imports for paths src does not already
// cover, after the last import or the package declaration.
func (p *Parser) AddImports(ctx context.Context, name string, src []byte, paths []string) ([]byte, error) {
	if len(paths) == 0 {
		return src, nil
	}

	var out []byte

	err := p.parse(ctx, name, src, func(root sitter.Node) error {
		c := newConverter(src, p.Hierarchy)
		c.collectImports(root)

		missing := missingImports(c.importList, paths)
		if len(missing) == 0 {
			out = src

			return nil
		}

		anchor, hasAnchor := 0, false

		for _, decl := range namedChildren(root) {
			if decl.Type() == "package_declaration" || decl.Type() == "import_declaration" {
				anchor, hasAnchor = safeconv.MustUintToInt(decl.EndByte()), true
			}
		}

		var lines bytes.Buffer

		if hasAnchor && len(c.importList) == 0 {
			// The first import is set off from the package line.
			lines.WriteString("\n")
		}

		for _, path := range missing {
			if hasAnchor {
				lines.WriteString("\nimport " + path + ";")
			} else {
				lines.WriteString("import " + path + ";\n")
			}
		}

		out = slices.Concat(src[:anchor], lines.Bytes(), src[anchor:])

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// missingImports returns the sorted paths neither imported directly nor
// covered by a wildcard or java.lang.
func missingImports(present, paths []string) []string {
	var missing []string

	for _, path := range paths {
		pkg := path[:max(strings.LastIndex(path, "."), 0)]

		if slices.Contains(present, path) || slices.Contains(present, pkg+".*") || pkg == "java.lang" {
			continue
		}

		missing = append(missing, path)
	}

	slices.Sort(missing)

	return slices.Compact(missing)
}
