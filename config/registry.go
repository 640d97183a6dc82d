package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mmx233/ProtoBridge/session"
	"gopkg.in/yaml.v3"
)

// RegistryFile maps legacy ids of one registry namespace to current ids.
//
//	mappings:
//	  1: 1
//	  2: 5
type RegistryFile struct {
	Mappings map[int32]int32 `yaml:"mappings"`
}

// LoadRegistries reads every configured mapping file. Relative paths are
// resolved against baseDir.
func LoadRegistries(files map[string]string, baseDir string) (map[string]*session.Registry, error) {
	out := make(map[string]*session.Registry, len(files))
	for ns, file := range files {
		if !filepath.IsAbs(file) && baseDir != "" {
			file = filepath.Join(baseDir, file)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read registry %s: %w", ns, err)
		}
		var rf RegistryFile
		if err := yaml.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("parse registry %s: %w", ns, err)
		}
		if len(rf.Mappings) == 0 {
			return nil, fmt.Errorf("registry %s: no mappings", ns)
		}
		reg, err := session.NewRegistry(rf.Mappings)
		if err != nil {
			return nil, fmt.Errorf("registry %s: %w", ns, err)
		}
		out[ns] = reg
	}
	return out, nil
}
