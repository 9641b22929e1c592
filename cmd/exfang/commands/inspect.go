package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/exfang/pkg/artifact"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
)

// templateView is the printable summary of one template.
type templateView struct {
	Name          string            `json:"name"                    yaml:"name"`
	File          string            `json:"file,omitempty"          yaml:"file,omitempty"`
	Version       uint16            `json:"version"                 yaml:"version"`
	Fingerprint   string            `json:"fingerprint"             yaml:"fingerprint"`
	Size          int               `json:"size,omitempty"          yaml:"size,omitempty"`
	NonIdempotent bool              `json:"nonIdempotent,omitempty" yaml:"nonIdempotent,omitempty"`
	Imports       []string          `json:"imports,omitempty"       yaml:"imports,omitempty"`
	Placeholders  []placeholderView `json:"placeholders,omitempty"  yaml:"placeholders,omitempty"`
	Befores       []string          `json:"befores,omitempty"       yaml:"befores,omitempty"`
	Afters        []string          `json:"afters,omitempty"        yaml:"afters,omitempty"`
}

type placeholderView struct {
	Name     string   `json:"name"               yaml:"name"`
	Types    []string `json:"types,omitempty"    yaml:"types,omitempty"`
	Exact    bool     `json:"exact,omitempty"    yaml:"exact,omitempty"`
	Variadic bool     `json:"variadic,omitempty" yaml:"variadic,omitempty"`
}

func newInspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect ARTIFACT...",
		Short: "Show artifact headers and patterns",
		Long: `Inspect decodes template artifacts and prints their schema version,
fingerprint, size, placeholders and before/after patterns.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			views := make([]templateView, 0, len(args))

			for _, path := range args {
				view, err := inspectArtifact(path)
				if err != nil {
					return err
				}

				views = append(views, view)
			}

			return a.renderTemplates(views, true)
		},
	}
}

func inspectArtifact(path string) (templateView, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return templateView{}, fmt.Errorf("read artifact: %w", err)
	}

	decoded, err := artifact.Unmarshal(data)
	if err != nil {
		return templateView{}, fmt.Errorf("%s: %w", path, err)
	}

	return viewOf(&store.Entry{
		Template:    decoded.Template,
		Fingerprint: decoded.Fingerprint,
		Version:     decoded.Version,
		Source:      path,
		Size:        len(data),
	}, true), nil
}

// viewOf summarizes entry; detailed adds the patterns and placeholders.
func viewOf(entry *store.Entry, detailed bool) templateView {
	tmpl := entry.Template

	view := templateView{
		Name:          tmpl.Name,
		File:          entry.Source,
		Version:       entry.Version,
		Fingerprint:   entry.Fingerprint.String(),
		Size:          entry.Size,
		NonIdempotent: tmpl.NonIdempotent,
		Imports:       tmpl.Imports,
	}

	if !detailed {
		return view
	}

	for _, decl := range tmpl.Placeholders {
		view.Placeholders = append(view.Placeholders, placeholderView{
			Name:     decl.Name,
			Types:    decl.Constraint.Types,
			Exact:    decl.Constraint.Exact,
			Variadic: decl.Variadic,
		})
	}

	view.Befores = patterns(tmpl.Befores)
	view.Afters = patterns(tmpl.Afters)

	return view
}

func patterns(nodes []*pattern.Node) []string {
	out := make([]string, 0, len(nodes))

	for _, n := range nodes {
		out = append(out, n.String())
	}

	return out
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded templates",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := a.loadStore()
			if err != nil {
				return err
			}

			views := make([]templateView, 0, s.Len())
			for _, entry := range s.Entries() {
				views = append(views, viewOf(entry, false))
			}

			return a.renderTemplates(views, false)
		},
	}
}
