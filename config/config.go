// Package config loads tutor configuration from environment variables and
// an optional config file. All settings have working defaults; a bare
// process starts with in-memory backends and no external services.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full tutor configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Model     ModelConfig     `mapstructure:"model"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Tutor     TutorConfig     `mapstructure:"tutor"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// ModelConfig selects the LLM provider and model.
type ModelConfig struct {
	Provider string `mapstructure:"provider"` // anthropic or openai
	Name     string `mapstructure:"name"`
	APIKey   string `mapstructure:"api_key"`
}

// GraphConfig selects the knowledge graph backend.
type GraphConfig struct {
	Backend  string `mapstructure:"backend"` // memory or neo4j
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// MemoryConfig selects the long-term memory backend.
type MemoryConfig struct {
	Backend  string `mapstructure:"backend"` // memory or redis
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MaxFacts int    `mapstructure:"max_facts"`
}

// RetrievalConfig selects the retrieval backend.
type RetrievalConfig struct {
	Backend    string `mapstructure:"backend"` // memory or qdrant
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	Collection string `mapstructure:"collection"`
	TopK       int    `mapstructure:"top_k"`
}

// TutorConfig holds the scoring policy knobs.
type TutorConfig struct {
	PassThreshold int `mapstructure:"pass_threshold"`
	PartialFloor  int `mapstructure:"partial_floor"`
	RecallLimit   int `mapstructure:"recall_limit"`
}

// Load reads configuration from the optional file path (yaml) and the
// environment. Environment variables use the MOSAIC_ prefix with
// underscores, e.g. MOSAIC_GRAPH_BACKEND=neo4j.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MOSAIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("model.provider", "anthropic")
	v.SetDefault("model.name", "")
	v.SetDefault("model.api_key", "")

	v.SetDefault("graph.backend", "memory")
	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "")

	v.SetDefault("memory.backend", "memory")
	v.SetDefault("memory.addr", "localhost:6379")
	v.SetDefault("memory.db", 0)
	v.SetDefault("memory.max_facts", 500)

	v.SetDefault("retrieval.backend", "memory")
	v.SetDefault("retrieval.host", "localhost")
	v.SetDefault("retrieval.port", 6334)
	v.SetDefault("retrieval.collection", "curriculum")
	v.SetDefault("retrieval.top_k", 5)

	v.SetDefault("tutor.pass_threshold", 70)
	v.SetDefault("tutor.partial_floor", 40)
	v.SetDefault("tutor.recall_limit", 5)
}

func (c *Config) validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	switch c.Graph.Backend {
	case "memory", "neo4j":
	default:
		return fmt.Errorf("unknown graph backend %q", c.Graph.Backend)
	}
	switch c.Memory.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown memory backend %q", c.Memory.Backend)
	}
	switch c.Retrieval.Backend {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	if c.Tutor.PartialFloor < 0 || c.Tutor.PassThreshold > 100 || c.Tutor.PartialFloor >= c.Tutor.PassThreshold {
		return fmt.Errorf("scoring thresholds out of order: floor %d, pass %d", c.Tutor.PartialFloor, c.Tutor.PassThreshold)
	}
	return nil
}
