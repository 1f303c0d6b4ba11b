package assetcache

import (
	"fmt"
	"os"
	"slices"

	"github.com/goccy/go-yaml"
)

// Manifest lists the resources of one asset generation
type Manifest struct {
	// Version is the generation tag, e.g. hearthline-v1
	Version string `yaml:"version"`
	// Fallback is served for document requests the cache and network cannot satisfy
	Fallback  string   `yaml:"fallback"`
	Resources []string `yaml:"resources"`
}

// LoadManifest reads a YAML manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest version is required")
	}
	if len(m.Resources) == 0 {
		return fmt.Errorf("manifest %s lists no resources", m.Version)
	}
	if m.Fallback != "" && !slices.Contains(m.Resources, m.Fallback) {
		return fmt.Errorf("manifest %s fallback %s is not a listed resource", m.Version, m.Fallback)
	}
	return nil
}
