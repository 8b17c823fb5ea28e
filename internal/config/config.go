package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Embedding EmbeddingConfig
	Ollama    OllamaConfig
	Notes     NotesConfig
	Jobs      JobsConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
	APIToken    string
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	DefaultProvider string
	Temperature     float64
	MaxIterations   int
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

// EmbeddingConfig selects the embedding backend: "openai" or "ollama".
type EmbeddingConfig struct {
	Provider string
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type NotesConfig struct {
	CategoryThreshold float64
}

type JobsConfig struct {
	ReindexSchedule string
}

type LogConfig struct {
	Level string
}

// Provider names accepted by llm.default_provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        3001,
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			DefaultProvider: ProviderOpenAI,
			Temperature:     0.7,
			MaxIterations:   10,
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-3-5-sonnet-20241022",
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
		},
		Notes: NotesConfig{
			CategoryThreshold: 0.8,
		},
		Jobs: JobsConfig{
			ReindexSchedule: "@every 15m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in increasing precedence: built-in defaults,
// the JSON file at $XDG_CONFIG_HOME/ai-assistant/config.json, a .env file
// in the working directory, then real environment variables. API keys
// still unset after that are read from secrets.json in the data dir.
//
// Load does not validate; callers that talk to an LLM call Validate.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), ".env")
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	dotenv, err := readDotenv(envFile)
	if err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg, func(name string) string {
		if v := os.Getenv(name); v != "" {
			return v
		}
		return dotenv[name]
	})

	if err := applySecrets(&cfg, newSecretStore(cfg.Storage.DataDir)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readDotenv parses a .env file without touching the process environment,
// so real environment variables always win. A missing file is not an error.
func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vals, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return vals, nil
}

// Validate checks that the chat surfaces can run: at least one LLM API key
// is configured and the default provider is one of them.
func (c Config) Validate() error {
	if c.OpenAI.APIKey == "" && c.Anthropic.APIKey == "" {
		return errors.New("missing required config: no LLM API key. " +
			"Set OPENAI_API_KEY or ANTHROPIC_API_KEY, or run `assistant config set-secret`")
	}
	switch c.LLM.DefaultProvider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("default provider is openai but OPENAI_API_KEY is not set")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return errors.New("default provider is anthropic but ANTHROPIC_API_KEY is not set")
		}
	default:
		return fmt.Errorf("unknown llm.default_provider %q (want openai or anthropic)", c.LLM.DefaultProvider)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, "ollama":
	default:
		return fmt.Errorf("unknown embedding.provider %q (want openai or ollama)", c.Embedding.Provider)
	}
	if c.LLM.MaxIterations < 1 {
		return fmt.Errorf("llm.max_iterations must be at least 1, got %d", c.LLM.MaxIterations)
	}
	if c.Notes.CategoryThreshold < 0 || c.Notes.CategoryThreshold > 1 {
		return fmt.Errorf("notes.category_threshold must be between 0 and 1, got %v", c.Notes.CategoryThreshold)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
