// Package store holds the loaded templates of a process. A Store is built
// once at startup and is read-only afterwards, so matching workers share it
// without locking.
package store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/exfang/internal/suggest"
	"github.com/Sumatoshi-tech/exfang/pkg/artifact"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
)

// Sentinel errors.
var (
	// ErrDuplicateTemplate reports two artifacts with the same identity.
	ErrDuplicateTemplate = errors.New("duplicate template")
	// ErrUnknownTemplate reports a name the store does not hold.
	ErrUnknownTemplate = errors.New("unknown template")
	// ErrIdentityMismatch reports an artifact whose template name differs
	// from the identity it was listed under.
	ErrIdentityMismatch = errors.New("template identity mismatch")
	// ErrFingerprintMismatch reports an artifact whose fingerprint differs
	// from the one recorded in the manifest.
	ErrFingerprintMismatch = errors.New("fingerprint mismatch")
)

// Entry is one loaded template with its provenance.
type Entry struct {
	Template    *pattern.Template
	Fingerprint artifact.Fingerprint
	Version     uint16
	// Source is the artifact path, empty for templates built in memory.
	Source string
	// Size is the artifact size in bytes, zero for templates built in memory.
	Size int
}

// Store maps template identities to entries.
type Store struct {
	entries map[string]*Entry
	names   []string
}

// New builds a store from in-memory templates.
func New(templates ...*pattern.Template) (*Store, error) {
	entries := make([]*Entry, 0, len(templates))

	for _, tmpl := range templates {
		entries = append(entries, &Entry{
			Template:    tmpl,
			Fingerprint: artifact.FingerprintOf(tmpl),
			Version:     artifact.CurrentVersion,
		})
	}

	return fromEntries(entries)
}

func fromEntries(entries []*Entry) (*Store, error) {
	s := &Store{entries: make(map[string]*Entry, len(entries))}

	for _, entry := range entries {
		name := entry.Template.Name
		if _, dup := s.entries[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTemplate, name)
		}

		s.entries[name] = entry
		s.names = append(s.names, name)
	}

	slices.Sort(s.names)

	return s, nil
}

// Len returns the number of templates.
func (s *Store) Len() int {
	return len(s.names)
}

// Names returns the template identities in sorted order.
func (s *Store) Names() []string {
	return slices.Clone(s.names)
}

// Get returns the entry for name.
func (s *Store) Get(name string) (*Entry, bool) {
	entry, ok := s.entries[name]

	return entry, ok
}

// Template returns the template for name.
func (s *Store) Template(name string) (*pattern.Template, bool) {
	entry, ok := s.entries[name]
	if !ok {
		return nil, false
	}

	return entry.Template, true
}

// Templates returns every template ordered by name.
func (s *Store) Templates() []*pattern.Template {
	templates := make([]*pattern.Template, 0, len(s.names))

	for _, name := range s.names {
		templates = append(templates, s.entries[name].Template)
	}

	return templates
}

// Entries returns every entry ordered by name.
func (s *Store) Entries() []*Entry {
	entries := make([]*Entry, 0, len(s.names))

	for _, name := range s.names {
		entries = append(entries, s.entries[name])
	}

	return entries
}

// Select returns a store restricted to names. An empty list selects everything.
func (s *Store) Select(names ...string) (*Store, error) {
	if len(names) == 0 {
		return s, nil
	}

	entries := make([]*Entry, 0, len(names))

	for _, name := range names {
		entry, ok := s.entries[name]
		if !ok {
			if near, found := suggest.Closest(name, s.names); found {
				return nil, fmt.Errorf("%w: %s (did you mean %s?)", ErrUnknownTemplate, name, near)
			}

			return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
		}

		entries = append(entries, entry)
	}

	return fromEntries(entries)
}
