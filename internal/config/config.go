package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"greenpath/internal/recommend"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all greenpath configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Store    StoreConfig    `yaml:"store"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Nav      NavConfig      `yaml:"nav"`
	UI       UIConfig       `yaml:"ui"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig configures the backend client.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StoreConfig configures local persistence.
type StoreConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"` // sqlite (modernc) or sqlite3 (cgo)
}

// NavConfig configures route resolution.
type NavConfig struct {
	DefaultRoute string `yaml:"default_route"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme string `yaml:"theme"` // auto, light, dark
}

// Supported store drivers.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000/api",
			Timeout: "30s",
		},
		Store: StoreConfig{
			Path:   filepath.Join(DefaultDir(), "greenpath.db"),
			Driver: DriverModernc,
		},
		Workflow: WorkflowConfig{
			SelectionMode: string(recommend.MultiSelect),
			ScoreFields:   append([]string(nil), recommend.DefaultScoreFields...),
			ApplyMode:     ApplyModeBatch,
			TerminalDelay: "1s",
		},
		Nav: NavConfig{
			DefaultRoute: "/admin",
		},
		UI: UIConfig{
			Theme: "auto",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   filepath.Join(DefaultDir(), "logs", "greenpath.log"),
		},
	}
}

// DefaultDir is the per-user directory for config, database and logs.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "greenpath")
	}
	return ".greenpath"
}

// DefaultPath is the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrap(err, "failed to read config")
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config")
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("GREENPATH_API_BASE"); url != "" {
		c.API.BaseURL = url
	}
	if path := os.Getenv("GREENPATH_DB"); path != "" {
		c.Store.Path = path
	}
	if mode := os.Getenv("GREENPATH_SELECTION"); mode != "" {
		c.Workflow.SelectionMode = strings.ToLower(mode)
	}
	if level := os.Getenv("GREENPATH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.DebugMode = true
	}
}

// GetAPITimeout returns the per-request HTTP timeout.
func (c *Config) GetAPITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetTerminalDelay returns how long the terminal message stays up before the
// report opens.
func (c *Config) GetTerminalDelay() time.Duration {
	d, err := time.ParseDuration(c.Workflow.TerminalDelay)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// ValidDrivers lists the accepted store drivers.
var ValidDrivers = []string{DriverModernc, DriverCGO}

// ValidThemes lists the accepted UI themes.
var ValidThemes = []string{"auto", "light", "dark"}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required (set GREENPATH_API_BASE)")
	}
	if !contains(ValidDrivers, c.Store.Driver) {
		return errors.Newf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}
	if c.UI.Theme != "" && !contains(ValidThemes, c.UI.Theme) {
		return errors.Newf("invalid ui theme: %s (valid: %v)", c.UI.Theme, ValidThemes)
	}
	if !strings.HasPrefix(c.Nav.DefaultRoute, "/") {
		return errors.Newf("nav.default_route must start with '/': %q", c.Nav.DefaultRoute)
	}
	if err := c.Workflow.validate(); err != nil {
		return err
	}
	if _, err := parseLevelName(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
