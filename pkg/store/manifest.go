package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifestVersion is the manifest format written by WriteManifest.
const manifestVersion = 1

// ErrManifestVersion reports a manifest format this build cannot read.
var ErrManifestVersion = errors.New("unsupported manifest version")

// Manifest lists the artifacts of a template directory by identity, so the
// host can choose which templates to load independently of file layout.
type Manifest struct {
	Version   int             `yaml:"version"`
	Templates []ManifestEntry `yaml:"templates"`
}

// ManifestEntry locates one artifact.
type ManifestEntry struct {
	Name        string `json:"name"                  yaml:"name"`
	File        string `json:"file"                  yaml:"file"`
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

// ReadManifest parses a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest

	err = yaml.Unmarshal(data, &manifest)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("%w: %d", ErrManifestVersion, manifest.Version)
	}

	return &manifest, nil
}

// WriteManifest writes entries, sorted by name, to path.
func WriteManifest(path string, entries []ManifestEntry) error {
	data, err := yaml.Marshal(Manifest{Version: manifestVersion, Templates: sortedRefs(entries)})
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
