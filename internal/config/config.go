package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models teamline.yml.
type Config struct {
	Org struct {
		Name string `yaml:"name"`
	} `yaml:"org"`
	Access struct {
		// Statuses that disqualify a user from being assigned as a
		// project manager.
		BlockedManagerStatuses []string `yaml:"blocked_manager_statuses"`
	} `yaml:"access"`
	Identifiers struct {
		ProjectPrefix  string `yaml:"project_prefix"`
		ModulePrefix   string `yaml:"module_prefix"`
		TaskPrefix     string `yaml:"task_prefix"`
		ActivityPrefix string `yaml:"activity_prefix"`
	} `yaml:"identifiers"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

var knownStatuses = map[string]bool{
	"active":     true,
	"on_notice":  true,
	"resigned":   true,
	"terminated": true,
	"inactive":   true,
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for _, s := range c.Access.BlockedManagerStatuses {
		if !knownStatuses[s] {
			return fmt.Errorf("access.blocked_manager_statuses contains unknown status %q", s)
		}
		if s == "active" {
			return fmt.Errorf("access.blocked_manager_statuses must not block active users")
		}
	}
	for name, prefix := range map[string]string{
		"identifiers.project_prefix":  c.Identifiers.ProjectPrefix,
		"identifiers.module_prefix":   c.Identifiers.ModulePrefix,
		"identifiers.task_prefix":     c.Identifiers.TaskPrefix,
		"identifiers.activity_prefix": c.Identifiers.ActivityPrefix,
	} {
		if prefix == "" {
			return fmt.Errorf("%s is required", name)
		}
		if strings.Contains(prefix, "-") {
			return fmt.Errorf("%s must not contain '-'", name)
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// BlockedManagerStatuses returns the configured block list, falling back to
// the standard non-assignable statuses.
func (c *Config) BlockedManagerStatuses() []string {
	if len(c.Access.BlockedManagerStatuses) > 0 {
		return c.Access.BlockedManagerStatuses
	}
	return []string{"on_notice", "resigned", "terminated", "inactive"}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "teamline.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	applyPrefixDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	cfg.Org.Name = "Default Org"
	applyPrefixDefaults(&cfg)
	return &cfg
}

func applyPrefixDefaults(cfg *Config) {
	if cfg.Identifiers.ProjectPrefix == "" {
		cfg.Identifiers.ProjectPrefix = "PRO"
	}
	if cfg.Identifiers.ModulePrefix == "" {
		cfg.Identifiers.ModulePrefix = "MOD"
	}
	if cfg.Identifiers.TaskPrefix == "" {
		cfg.Identifiers.TaskPrefix = "TSK"
	}
	if cfg.Identifiers.ActivityPrefix == "" {
		cfg.Identifiers.ActivityPrefix = "ACT"
	}
}

// GenerateDefault returns default config YAML for `tl config init`.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `org:
  name: Default Org

access:
  blocked_manager_statuses: [on_notice, resigned, terminated, inactive]

identifiers:
  project_prefix: PRO
  module_prefix: MOD
  task_prefix: TSK
  activity_prefix: ACT

webhooks: []
`
