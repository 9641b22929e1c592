package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/exfang/pkg/artifact"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// ManifestFile is the manifest name looked up by LoadDir.
const ManifestFile = "manifest.yaml"

// LoadError reports one artifact that failed to load. Other artifacts still load.
type LoadError struct {
	Path string
	// Name is the identity the artifact was listed under, if known.
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("load template %s from %s: %v", e.Name, e.Path, e.Err)
	}

	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

// Unwrap returns the cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadErrors extracts the per-artifact failures from an error returned by a
// Load function.
func LoadErrors(err error) []*LoadError {
	if err == nil {
		return nil
	}

	var failures []*LoadError

	var single *LoadError

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if errors.As(inner, &single) {
				failures = append(failures, single)
			}
		}

		return failures
	}

	if errors.As(err, &single) {
		failures = append(failures, single)
	}

	return failures
}

// LoadDir loads a template directory. When the directory has a manifest, the
// manifest decides which artifacts load; otherwise every artifact file does.
//
// The returned store holds every artifact that loaded. The error, when not
// nil, joins a [LoadError] per failed artifact; it is fatal only when the
// store is nil.
func LoadDir(dir string) (*Store, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	_, statErr := os.Stat(manifestPath)
	if statErr == nil {
		return LoadManifest(manifestPath)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	var paths []string

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), artifact.Extension) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	return LoadFiles(paths...)
}

// LoadFiles loads the given artifact files.
func LoadFiles(paths ...string) (*Store, error) {
	refs := make([]ManifestEntry, 0, len(paths))

	for _, path := range paths {
		refs = append(refs, ManifestEntry{File: path})
	}

	return load("", refs)
}

// LoadManifest loads the artifacts a manifest lists, resolving relative
// files against the manifest's directory.
func LoadManifest(path string) (*Store, error) {
	manifest, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}

	return load(filepath.Dir(path), manifest.Templates)
}

func load(base string, refs []ManifestEntry) (*Store, error) {
	var (
		loaded   []*Entry
		failures []error
	)

	seen := make(map[string]string)

	for _, ref := range refs {
		path := ref.File
		if base != "" && !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}

		entry, err := loadOne(path, ref)
		if err != nil {
			failures = append(failures, &LoadError{Path: path, Name: ref.Name, Err: err})

			continue
		}

		name := entry.Template.Name
		if first, dup := seen[name]; dup {
			failures = append(failures, &LoadError{
				Path: path, Name: name,
				Err: fmt.Errorf("%w: already loaded from %s", ErrDuplicateTemplate, first),
			})

			continue
		}

		seen[name] = path
		loaded = append(loaded, entry)
	}

	s, err := fromEntries(loaded)
	if err != nil {
		return nil, err
	}

	return s, errors.Join(failures...)
}

func loadOne(path string, ref ManifestEntry) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	decoded, err := artifact.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	if ref.Name != "" && decoded.Template.Name != ref.Name {
		return nil, fmt.Errorf("%w: file holds %s", ErrIdentityMismatch, decoded.Template.Name)
	}

	if ref.Fingerprint != "" && decoded.Fingerprint.String() != ref.Fingerprint {
		return nil, fmt.Errorf("%w: manifest %s, artifact %s",
			ErrFingerprintMismatch, ref.Fingerprint, decoded.Fingerprint)
	}

	return &Entry{
		Template:    decoded.Template,
		Fingerprint: decoded.Fingerprint,
		Version:     decoded.Version,
		Source:      path,
		Size:        len(data),
	}, nil
}

// WriteArtifact encodes t at version into dir and returns its manifest entry.
func WriteArtifact(dir string, t *pattern.Template, version uint16) (ManifestEntry, error) {
	data, err := artifact.MarshalVersion(t, version)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("encode %s: %w", t.Name, err)
	}

	decoded, err := artifact.Unmarshal(data)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("verify %s: %w", t.Name, err)
	}

	file := FileName(t.Name)

	err = os.WriteFile(filepath.Join(dir, file), data, 0o600)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("write artifact: %w", err)
	}

	return ManifestEntry{Name: t.Name, File: file, Fingerprint: decoded.Fingerprint.String()}, nil
}

// FileName maps a template identity to a portable artifact file name.
func FileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)

	return mapped + artifact.Extension
}

// sortedRefs orders manifest entries by name for stable manifests.
func sortedRefs(refs []ManifestEntry) []ManifestEntry {
	sorted := slices.Clone(refs)
	slices.SortFunc(sorted, func(a, b ManifestEntry) int { return strings.Compare(a.Name, b.Name) })

	return sorted
}
