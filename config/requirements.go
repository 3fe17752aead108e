package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Requirements is the parsed per-task-type memory table.
//
//	requirements:
//	  keyframe: 800
//	  video: 3200
//	default_mb: 512
type Requirements struct {
	// PerType maps a task type to the free megabytes it needs.
	PerType map[string]uint64 `yaml:"requirements"`

	// DefaultMB applies to types missing from the table. Zero means
	// only the gate headroom applies to unknown types.
	DefaultMB uint64 `yaml:"default_mb"`
}

// LoadRequirements parses the YAML requirement table at path.
func LoadRequirements(path string) (*Requirements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirements file: %w", err)
	}

	var r Requirements
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse requirements file %s: %w", path, err)
	}

	for taskType, mb := range r.PerType {
		if taskType == "" {
			return nil, fmt.Errorf("requirements file %s: empty task type", path)
		}
		if mb == 0 {
			return nil, fmt.Errorf("requirements file %s: zero requirement for %q", path, taskType)
		}
	}
	return &r, nil
}
