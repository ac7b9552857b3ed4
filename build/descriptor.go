package build

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Descriptor is the runtime environment descriptor §6 specifies: a small,
// human-readable file listing the effective shader search path, so a
// runtime consumer can rediscover it without re-running the build step.
type Descriptor struct {
	ShaderSearchPath []string `yaml:"shaderSearchPath"`
}

// WriteDescriptor resolves every entry of searchPaths to an absolute path
// and writes the resulting Descriptor as YAML to path.
func WriteDescriptor(path string, searchPaths []string) error {
	abs := make([]string, len(searchPaths))
	for i, p := range searchPaths {
		a, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		abs[i] = a
	}
	data, err := yaml.Marshal(Descriptor{ShaderSearchPath: abs})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadDescriptor loads a Descriptor previously written by WriteDescriptor.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
