package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the tafsiir agent
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// GeminiConfig contains the Gemini API settings shared by the embedding
// and generation clients.
type GeminiConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	EmbeddingModel   string        `mapstructure:"embedding_model"`
	GenerationModels []string      `mapstructure:"generation_models"`
	Temperature      float64       `mapstructure:"temperature"`
	MaxOutputTokens  int           `mapstructure:"max_output_tokens"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// IngestConfig contains the batch ingestion settings
type IngestConfig struct {
	CorpusPath   string        `mapstructure:"corpus_path"`
	StorePath    string        `mapstructure:"store_path"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

// RetrievalConfig contains the query-time retrieval settings
type RetrievalConfig struct {
	TopK         int `mapstructure:"top_k"`
	SnippetChars int `mapstructure:"snippet_chars"`
}

// RedisConfig contains the optional embedding-cache connection settings.
// The cache is disabled when Host is empty.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ResolveAPIKey returns the configured Gemini API key, falling back to the
// GOOGLE_API_KEY and GEMINI_API_KEY environment variables.
func (g GeminiConfig) ResolveAPIKey() string {
	if g.APIKey != "" {
		return g.APIKey
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("GEMINI_API_KEY")
}

// ErrNoAPIKey indicates that no usable Gemini API key is configured.
var ErrNoAPIKey = errors.New("valid Gemini API key required (set GOOGLE_API_KEY or GEMINI_API_KEY)")

// ValidateAPIKey rejects missing keys and the placeholder values that ship
// in example env files.
func ValidateAPIKey(key string) error {
	if key == "" || key == "PLACEHOLDER" || strings.Contains(key, "YOUR_") {
		return ErrNoAPIKey
	}
	return nil
}

func (g GeminiConfig) Validate() error {
	if g.EmbeddingModel == "" {
		return fmt.Errorf("gemini.embedding_model must not be empty")
	}
	if len(g.GenerationModels) == 0 {
		return fmt.Errorf("gemini.generation_models must list at least one model")
	}
	return nil
}

func (i IngestConfig) Validate() error {
	if i.ChunkSize < 1 {
		return fmt.Errorf("ingest.chunk_size must be >= 1")
	}
	if i.RequestDelay < 0 || i.ErrorBackoff < 0 {
		return fmt.Errorf("ingest delays must not be negative")
	}
	return nil
}

func (r RetrievalConfig) Validate() error {
	if r.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be >= 1")
	}
	if r.SnippetChars < 1 {
		return fmt.Errorf("retrieval.snippet_chars must be >= 1")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("gemini.generation_models", []string{
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
		"gemini-2.5-flash",
		"gemini-pro",
	})
	viper.SetDefault("gemini.temperature", 0.2)
	viper.SetDefault("gemini.max_output_tokens", 2048)
	viper.SetDefault("gemini.timeout", 60*time.Second)
	viper.SetDefault("ingest.corpus_path", "data/quran.json")
	viper.SetDefault("ingest.store_path", "data/tafsiir.db")
	viper.SetDefault("ingest.chunk_size", 5)
	viper.SetDefault("ingest.request_delay", 4*time.Second)
	viper.SetDefault("ingest.error_backoff", 5*time.Second)
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.snippet_chars", 2000)
	viper.SetDefault("redis.host", "")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.timeout", 5*time.Second)
	viper.SetDefault("redis.ttl", 24*time.Hour)
}

// LoadConfig loads config from file. A missing config file is not an error:
// the defaults plus TAFSIIR_* environment variables are enough to run.
func LoadConfig(path string) (*Config, error) {
	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("TAFSIIR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && (path == "" || !os.IsNotExist(err)) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := config.Gemini.Validate(); err != nil {
		return nil, err
	}
	if err := config.Ingest.Validate(); err != nil {
		return nil, err
	}
	if err := config.Retrieval.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
