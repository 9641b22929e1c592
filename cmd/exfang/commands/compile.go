package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/exfang/pkg/artifact"
	"github.com/Sumatoshi-tech/exfang/pkg/check"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
)

// ErrDuplicateName is returned when two example files define the same template.
var ErrDuplicateName = errors.New("template defined twice")

type compileOptions struct {
	outDir        string
	schemaVersion uint16
}

func newCompileCommand(a *app) *cobra.Command {
	opts := &compileOptions{}

	cmd := &cobra.Command{
		Use:   "compile [flags] SRC...",
		Short: "Compile example files into template artifacts",
		Long: `Compile reads example files, extracts one template per before/after group
and writes an artifact per template plus a manifest.yaml into the output
directory.

Go examples are functions annotated with //exfang:before NAME and
//exfang:after NAME. Java examples are classes whose methods carry
@BeforeTemplate and @AfterTemplate.

A template whose rewrite would match its own output is rejected unless it
is marked non-idempotent.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("out") {
				opts.outDir = a.cfg.Store.Dir
			}

			return a.runCompile(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default: the configured store)")
	cmd.Flags().Uint16Var(&opts.schemaVersion, "schema-version", artifact.CurrentVersion, "artifact schema version to write")

	return cmd
}

func (a *app) runCompile(ctx context.Context, opts *compileOptions, sources []string) error {
	set := frontend.NewSet(a.cfg.Engine.Language)

	files, err := collectSources(sources, set)
	if err != nil {
		return err
	}

	err = os.MkdirAll(opts.outDir, 0o750)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	origin := make(map[string]string)

	var entries []store.ManifestEntry

	for _, file := range files {
		compiled, compileErr := a.compileFile(ctx, set, file, opts, origin)
		if compileErr != nil {
			return compileErr
		}

		entries = append(entries, compiled...)
	}

	err = store.WriteManifest(filepath.Join(opts.outDir, store.ManifestFile), entries)
	if err != nil {
		return err
	}

	return a.renderCompile(entries, opts.outDir)
}

func (a *app) compileFile(
	ctx context.Context, set *frontend.Set, file string, opts *compileOptions, origin map[string]string,
) ([]store.ManifestEntry, error) {
	fe, err := set.For(file)
	if err != nil {
		return nil, err
	}

	src, err := readSource(file)
	if err != nil {
		return nil, err
	}

	templates, err := fe.CompileExamples(ctx, file, src)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", file, err)
	}

	entries := make([]store.ManifestEntry, 0, len(templates))

	for _, tmpl := range templates {
		if prev, dup := origin[tmpl.Name]; dup {
			return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateName, tmpl.Name, prev, file)
		}

		origin[tmpl.Name] = file

		err = check.CheckIdempotent(tmpl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		entry, writeErr := store.WriteArtifact(opts.outDir, tmpl, opts.schemaVersion)
		if writeErr != nil {
			return nil, writeErr
		}

		a.logger.DebugContext(ctx, "template compiled", "template", tmpl.Name, "file", entry.File)

		entries = append(entries, entry)
	}

	return entries, nil
}
