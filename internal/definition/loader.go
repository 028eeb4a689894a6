// Package definition loads the YAML files describing which backend
// resources the console exposes, validates them, and serves them from a
// registry whose contents can be swapped atomically.
package definition

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/erpconsole/model"
)

// Loader scans directories for definition files.
type Loader struct{}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadAll walks directories recursively and parses every *.yaml and *.yml
// file into a DomainDefinition.
func (l *Loader) LoadAll(directories []string) ([]model.DomainDefinition, error) {
	var defs []model.DomainDefinition
	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
			default:
				return nil
			}
			def, err := l.LoadFile(path)
			if err != nil {
				return err
			}
			defs = append(defs, def)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("definition: scanning %s: %w", dir, err)
		}
	}
	return defs, nil
}

// LoadFile parses one file and records its path and SHA-256 checksum.
func (l *Loader) LoadFile(path string) (model.DomainDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.DomainDefinition{}, fmt.Errorf("definition: reading %s: %w", path, err)
	}

	var def model.DomainDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return model.DomainDefinition{}, fmt.Errorf("definition: parsing %s: %w", path, err)
	}
	def.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
	def.SourceFile = path
	return def, nil
}
