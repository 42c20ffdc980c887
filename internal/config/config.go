package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant" mapstructure:"qdrant"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// EngineConfig configures the dialogue state machine and merge behavior.
type EngineConfig struct {
	DefaultPlatform         string  `yaml:"default_platform" mapstructure:"default_platform"`
	MaxIterations           int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	CompletionThreshold     float64 `yaml:"completion_threshold" mapstructure:"completion_threshold"`
	RetrievalMinConfidence  float64 `yaml:"retrieval_min_confidence" mapstructure:"retrieval_min_confidence"`
	RetrievalK              int     `yaml:"retrieval_k" mapstructure:"retrieval_k"`
	ExtractionTimeoutSecs   int     `yaml:"extraction_timeout_secs" mapstructure:"extraction_timeout_secs"`
	RetrievalTimeoutSecs    int     `yaml:"retrieval_timeout_secs" mapstructure:"retrieval_timeout_secs"`
	ExtractionRatePerSecond float64 `yaml:"extraction_rate_per_second" mapstructure:"extraction_rate_per_second"`
}

// SchemaConfig points at an optional directory of platform schema overrides.
type SchemaConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the trace/session persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds the extraction backend settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// EmbeddingConfig holds the embedding backend settings for retrieval
// probes. BaseURL may point at any OpenAI-compatible endpoint.
type EmbeddingConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
	Dims    uint64 `yaml:"dims" mapstructure:"dims"`
}

// QdrantConfig holds the vector index connection settings.
type QdrantConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.default_platform", "topcoder-development")
	v.SetDefault("engine.max_iterations", 50)
	v.SetDefault("engine.completion_threshold", 0.6)
	v.SetDefault("engine.retrieval_min_confidence", 0.6)
	v.SetDefault("engine.retrieval_k", 3)
	v.SetDefault("engine.extraction_timeout_secs", 20)
	v.SetDefault("engine.retrieval_timeout_secs", 5)
	v.SetDefault("engine.extraction_rate_per_second", 2.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "scope.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dims", 1536)
	v.SetDefault("qdrant.url", "http://localhost:6333")
	v.SetDefault("qdrant.collection", "past_projects")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command needs are present.
func (c *Config) Validate(command string) error {
	switch command {
	case "serve", "chat":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required (SCOPE_ANTHROPIC_KEY)")
		}
	case "seed":
		if c.Embedding.Key == "" {
			return eris.New("config: embedding.key is required (SCOPE_EMBEDDING_KEY)")
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
