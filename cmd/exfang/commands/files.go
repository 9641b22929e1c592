package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/exfang/internal/vcs"
	"github.com/Sumatoshi-tech/exfang/pkg/check"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

// ErrNoSources is returned when the given paths hold no supported files.
var ErrNoSources = errors.New("no source files found")

// skippedDirs are never descended into.
var skippedDirs = []string{".git", ".hg", ".svn", "vendor", "node_modules", "testdata"}

// collectSources expands paths into the supported source files beneath them.
// Explicit file arguments are kept even when their extension is unknown so
// that a forced language still applies.
func collectSources(paths []string, set *frontend.Set) ([]string, error) {
	var files []string

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			files = append(files, root)

			continue
		}

		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			if entry.IsDir() {
				if path != root && (slices.Contains(skippedDirs, entry.Name()) || strings.HasPrefix(entry.Name(), ".")) {
					return filepath.SkipDir
				}

				return nil
			}

			if set.Supported(path) {
				files = append(files, path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	slices.Sort(files)
	files = slices.Compact(files)

	if len(files) == 0 {
		return nil, ErrNoSources
	}

	return files, nil
}

// changedOnly narrows files to those changed since rev in the repository
// holding the first file.
func changedOnly(files []string, rev string) ([]string, error) {
	if rev == "" || len(files) == 0 {
		return files, nil
	}

	repo, err := vcs.Open(filepath.Dir(files[0]))
	if err != nil {
		return nil, err
	}
	defer repo.Free()

	changed, err := repo.ChangedSince(rev)
	if err != nil {
		return nil, err
	}

	return vcs.Filter(files, changed), nil
}

// sourceInputs turns files into lazily parsed check inputs. Each file is
// parsed by the front end its path selects. Content held in overlay replaces
// the file on disk.
func sourceInputs(files []string, set *frontend.Set, overlay map[string][]byte) []check.Input {
	inputs := make([]check.Input, 0, len(files))

	for _, path := range files {
		inputs = append(inputs, check.Input{
			Name: path,
			Load: func(ctx context.Context) (*tree.Unit, error) {
				fe, err := set.For(path)
				if err != nil {
					return nil, err
				}

				src, ok := overlay[path]
				if !ok {
					src, err = readSource(path)
					if err != nil {
						return nil, err
					}
				}

				return fe.ParseSource(ctx, path, src)
			},
		})
	}

	return inputs
}

func readSource(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return src, nil
}
