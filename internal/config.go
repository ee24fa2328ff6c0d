package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kenaz-notebook/internal/links"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Storage   StorageConfig     `yaml:"storage"`
	Editor    EditorConfig      `yaml:"editor"`
	Links     LinksConfig       `yaml:"links"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SSE       SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	if err := c.Links.Validate(); err != nil {
		return err
	}
	return c.SSE.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where workspace state is persisted.
//
// Backend controls the provider:
//   - "fs" (default): one JSON file per key under Dir; Watch reloads on external edits.
//   - "sqlite": a key/value table in the database at SQLitePath.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
	Watch      bool   `yaml:"watch"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendFS
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFS, BackendSQLite)),
		validation.Field(&c.Dir, validation.When(c.Backend == BackendFS, validation.Required)),
		validation.Field(&c.SQLitePath, validation.When(c.Backend == BackendSQLite, validation.Required)),
	)
}

// EditorConfig holds the debounce windows used while editing.
type EditorConfig struct {
	CommitDelay        time.Duration `yaml:"commit_delay"`
	SaveIndicatorDelay time.Duration `yaml:"save_indicator_delay"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CommitDelay, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.SaveIndicatorDelay, validation.Required, validation.Min(time.Millisecond)),
	)
}

// LinksConfig controls how followed links are resolved.
//
// Scope "folder" (default) looks for the target only among the active
// folder's notes; "tree" searches every folder. New notes are always
// created in the active folder.
type LinksConfig struct {
	Scope string `yaml:"scope"`
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	if c.Scope == "" {
		c.Scope = links.ScopeFolder
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Scope, validation.In(links.ScopeFolder, links.ScopeTree)),
	)
}

// WorkspaceConfig holds first-run behaviour.
type WorkspaceConfig struct {
	SeedDemo bool `yaml:"seed_demo"`
}

// SSEConfig holds event stream configuration.
type SSEConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Backend:    BackendFS,
			Dir:        "./data",
			SQLitePath: "./kenaz.db",
			Watch:      true,
		},
		Editor: EditorConfig{
			CommitDelay:        200 * time.Millisecond,
			SaveIndicatorDelay: 800 * time.Millisecond,
		},
		Links: LinksConfig{
			Scope: links.ScopeFolder,
		},
		Workspace: WorkspaceConfig{
			SeedDemo: true,
		},
		SSE: SSEConfig{
			GraphThrottle: 2 * time.Second,
		},
	}
}
