// Package vcs narrows a check run to the files a Git revision has not seen yet.
package vcs

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository opened from any path inside its work tree.
type Repository struct {
	repo    *git2go.Repository
	workdir string
}

// Open discovers the repository containing path.
func Open(path string) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	repo, err := git2go.OpenRepositoryExtended(abs, 0, "")
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	workdir := repo.Workdir()
	if workdir == "" {
		repo.Free()

		return nil, fmt.Errorf("open repository: %s is bare", abs)
	}

	return &Repository{repo: repo, workdir: filepath.Clean(workdir)}, nil
}

// Workdir returns the absolute work tree root.
func (r *Repository) Workdir() string {
	return r.workdir
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// ChangedSince returns the absolute paths of files added, modified, renamed
// or untracked in the work tree relative to rev. Deleted files are omitted.
// The result is sorted.
func (r *Repository) ChangedSince(rev string) ([]string, error) {
	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return nil, fmt.Errorf("peel %s: %w", rev, err)
	}
	defer peeled.Free()

	commit, err := peeled.AsCommit()
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", rev, err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", rev, err)
	}
	defer tree.Free()

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	opts.Flags |= git2go.DiffIncludeUntracked | git2go.DiffRecurseUntracked

	diff, err := r.repo.DiffTreeToWorkdirWithIndex(tree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff %s against work tree: %w", rev, err)
	}
	defer diff.Free() //nolint:errcheck // nothing to do on a failed free.

	return r.paths(diff)
}

func (r *Repository) paths(diff *git2go.Diff) ([]string, error) {
	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	paths := make([]string, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		switch delta.Status {
		case git2go.DeltaAdded, git2go.DeltaModified, git2go.DeltaRenamed,
			git2go.DeltaCopied, git2go.DeltaUntracked, git2go.DeltaTypeChange:
			paths = append(paths, filepath.Join(r.workdir, filepath.FromSlash(delta.NewFile.Path)))
		case git2go.DeltaDeleted, git2go.DeltaUnmodified, git2go.DeltaIgnored,
			git2go.DeltaUnreadable, git2go.DeltaConflicted:
			continue
		}
	}

	slices.Sort(paths)

	return slices.Compact(paths), nil
}

// Filter keeps the entries of files that are in changed. Both sides are
// compared as absolute paths.
func Filter(files, changed []string) []string {
	kept := make([]string, 0, len(files))

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			continue
		}

		if _, found := slices.BinarySearch(changed, abs); found {
			kept = append(kept, file)
		}
	}

	return kept
}

// Within reports whether path lies under dir.
func Within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
