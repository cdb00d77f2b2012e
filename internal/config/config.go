package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models opsmap.yml.
type Config struct {
	Org struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"org"`
	Metrics struct {
		PreviewLimit int `yaml:"preview_limit"`
	} `yaml:"metrics"`
	Server struct {
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.ID == "" {
		return fmt.Errorf("config.org.id is required")
	}
	if c.Metrics.PreviewLimit < 0 {
		return fmt.Errorf("config.metrics.preview_limit must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "opsmap.yml")
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with om init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default("default"), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default Config for an organization id.
func Default(orgID string) *Config {
	var cfg Config
	cfg.Org.ID = orgID
	cfg.Org.Name = orgID
	cfg.Metrics.PreviewLimit = 5
	cfg.Server.BasePath = "/v0"
	return &cfg
}

// GenerateDefault returns default config YAML for om init.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID, orgID)
}

const defaultTemplate = `org:
  id: %s
  name: %s

metrics:
  preview_limit: 5

server:
  base_path: /v0
  # jwt_secret: set OPSMAP_JWT_SECRET instead of committing a secret here
`
