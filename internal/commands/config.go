package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/txnimport/internal/parser"
)

// DefaultConfigFile is read when --config is not given and the file exists.
const DefaultConfigFile = "importctl.yaml"

// FileConfig is the optional importctl.yaml.
type FileConfig struct {
	Endpoint string         `yaml:"endpoint"`
	APIKey   string         `yaml:"api_key,omitempty"`
	Timeout  time.Duration  `yaml:"timeout,omitempty"`
	MaxSize  int64          `yaml:"max_file_size,omitempty"`
	MaxRows  int            `yaml:"max_rows,omitempty"`
	Columns  parser.Columns `yaml:"columns,omitempty"`
}

// DefaultFileConfig returns the settings used when no file is present.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Timeout: 30 * time.Second,
		MaxSize: 10 << 20,
		MaxRows: 10000,
		Columns: parser.DefaultColumns(),
	}
}

// LoadFileConfig reads path over the defaults. Column alias lists left empty
// in the file keep their built-in values.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultFileConfig()
	cfg.Columns = parser.Columns{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Columns = cfg.Columns.Merge(parser.DefaultColumns())
	return cfg, nil
}

// resolveConfig loads path, or the default file when path is empty and it exists.
func resolveConfig(path string) (*FileConfig, error) {
	if path != "" {
		return LoadFileConfig(path)
	}
	cfg, err := LoadFileConfig(DefaultConfigFile)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultFileConfig(), nil
	}
	return cfg, err
}
