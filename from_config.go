package threatmesh

import (
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/threatmesh/threatmesh/artifact"
	"github.com/threatmesh/threatmesh/artifact/sqlite"
	"github.com/threatmesh/threatmesh/config"
	"github.com/threatmesh/threatmesh/core"
	"github.com/threatmesh/threatmesh/embedding"
	"github.com/threatmesh/threatmesh/logging"
	"github.com/threatmesh/threatmesh/model"
	anthropicmodel "github.com/threatmesh/threatmesh/model/anthropic"
	openaimodel "github.com/threatmesh/threatmesh/model/openai"
)

// FromConfig builds a ThreatMesh instance from a loaded configuration. The
// storage driver selects the artifact repository, the model section selects
// the chat model and the logging section selects the logger. Additional
// option functions run after the configuration is applied and may override
// any of it.
func FromConfig(cfg config.Config, optFns ...func(o *Options)) (*ThreatMesh, error) {
	artifacts, err := repositoryFromConfig(cfg.Storage)
	if err != nil {
		return nil, err
	}
	chatModel, err := ModelFromConfig(cfg.Model)
	if err != nil {
		return nil, err
	}
	logger, err := loggerFromConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}

	fns := append([]func(o *Options){func(o *Options) {
		o.Embedder = embedding.NewHashEmbedder(cfg.Retrieval.EmbeddingDim)
		o.Artifacts = artifacts
		o.ChatModel = chatModel
		o.TopK = cfg.Retrieval.TopK
		o.MaxContextTokens = cfg.Retrieval.MaxContextTokens
		o.PluginTimeout = cfg.Orchestrator.PluginTimeout.Std()
		o.MaxConcurrentAnalyses = cfg.Orchestrator.MaxConcurrentAnalyses
		o.NotificationBufferSize = cfg.Orchestrator.NotificationBufferSize
		o.Logger = logger
	}}, optFns...)

	return New(fns...), nil
}

// ModelFromConfig constructs the generation model the configuration selects.
// Callers registering model-backed agents can reuse it so agents and chat run
// against the same provider.
func ModelFromConfig(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		var clientOpts []openaioption.RequestOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, openaioption.WithAPIKey(cfg.APIKey))
		}
		client := openaisdk.NewClient(clientOpts...)
		return openaimodel.NewModelFromClient(&client, func(o *openaimodel.Options) {
			if cfg.Name != "" {
				o.Model = openaisdk.ChatModel(cfg.Name)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		name := cfg.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func repositoryFromConfig(cfg config.StorageConfig) (core.ArtifactRepository, error) {
	switch cfg.Driver {
	case "sqlite":
		repo, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite repository: %w", err)
		}
		return repo, nil
	case "memory", "":
		return artifact.NewInMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func loggerFromConfig(cfg config.LoggingConfig) (logging.Logger, error) {
	var level logging.LogLevel
	switch cfg.Level {
	case "debug":
		level = logging.LogLevelDebug
	case "info", "":
		level = logging.LogLevelInfo
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    os.Stdout,
		Component: "threatmesh",
	}), nil
}
