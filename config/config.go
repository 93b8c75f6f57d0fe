// Package config loads pipeline configuration from YAML with environment
// variable overrides for credentials and deployment-specific settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/threatmesh/threatmesh/core"
)

// ModelConfig selects and tunes the generation model.
type ModelConfig struct {
	// Provider is "openai", "anthropic" or "mock".
	Provider string `yaml:"provider"`
	// Name is the provider-specific model identifier. Empty selects the
	// provider default.
	Name string `yaml:"name"`
	// APIKey is normally left empty in files and supplied via
	// OPENAI_API_KEY / ANTHROPIC_API_KEY.
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// RetrievalConfig tunes the context store.
type RetrievalConfig struct {
	TopK             int `yaml:"top_k"`
	MaxContextTokens int `yaml:"max_context_tokens"`
	EmbeddingDim     int `yaml:"embedding_dim"`
}

// Duration wraps time.Duration so YAML values can use the human form
// ("90s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// OrchestratorConfig tunes run execution.
type OrchestratorConfig struct {
	PluginTimeout          Duration `yaml:"plugin_timeout"`
	MaxConcurrentAnalyses  int64    `yaml:"max_concurrent_analyses"`
	NotificationBufferSize int      `yaml:"notification_buffer_size"`
}

// StorageConfig selects the artifact repository.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the sqlite database file when Driver is "sqlite".
	Path string `yaml:"path"`
}

// LoggingConfig tunes diagnostic output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Model          ModelConfig        `yaml:"model"`
	Retrieval      RetrievalConfig    `yaml:"retrieval"`
	Orchestrator   OrchestratorConfig `yaml:"orchestrator"`
	Storage        StorageConfig      `yaml:"storage"`
	Logging        LoggingConfig      `yaml:"logging"`
	EnabledPlugins []core.FrameworkID `yaml:"enabled_plugins"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:    "mock",
			Temperature: 0.3,
			MaxTokens:   4096,
		},
		Retrieval: RetrievalConfig{
			TopK:             20,
			MaxContextTokens: 8000,
			EmbeddingDim:     64,
		},
		Orchestrator: OrchestratorConfig{
			PluginTimeout:          Duration(5 * time.Minute),
			MaxConcurrentAnalyses:  4,
			NotificationBufferSize: 64,
		},
		Storage: StorageConfig{Driver: "memory"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		EnabledPlugins: []core.FrameworkID{
			core.FrameworkSTPASec,
			core.FrameworkSTRIDE,
		},
	}
}

// Load reads a YAML configuration file, layers it over the defaults and then
// applies environment overrides. An empty path returns defaults plus
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("THREATMESH_MODEL_PROVIDER"); v != "" {
		c.Model.Provider = v
	}
	if v := os.Getenv("THREATMESH_MODEL_NAME"); v != "" {
		c.Model.Name = v
	}
	switch c.Model.Provider {
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			c.Model.APIKey = v
		}
	default:
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.Model.APIKey = v
		}
	}
	if v := os.Getenv("THREATMESH_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("THREATMESH_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("THREATMESH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("THREATMESH_MAX_CONTEXT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.MaxContextTokens = n
		}
	}
}

func (c *Config) validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("sqlite storage requires a path")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Retrieval.MaxContextTokens <= 0 {
		return fmt.Errorf("max_context_tokens must be positive")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	for _, id := range c.EnabledPlugins {
		if !core.KnownFramework(id) {
			return fmt.Errorf("unknown framework %q in enabled_plugins", id)
		}
	}
	return nil
}
