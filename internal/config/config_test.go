package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// isolate clears every variable the loader reads and points the data dir
// at a temp directory so the host's secrets are never picked up.
func isolate(t *testing.T) string {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
	dataDir := t.TempDir()
	t.Setenv("ASSISTANT_DATA_DIR", dataDir)
	return dataDir
}

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return newFileBackend(path)
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies all default values are applied when nothing is configured.
func TestDefaults(t *testing.T) {
	isolate(t)

	cfg, err := loadWith(writeTempConfig(t, `{}`), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q", cfg.Server.Host)
	}
	if !slices.Equal(cfg.Server.CORSOrigins, []string{"http://localhost:5173"}) {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.LLM.DefaultProvider != "openai" || cfg.LLM.Temperature != 0.7 || cfg.LLM.MaxIterations != 10 {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" || cfg.OpenAI.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("OpenAI = %+v", cfg.OpenAI)
	}
	if cfg.Anthropic.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("Anthropic.Model = %q", cfg.Anthropic.Model)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" || cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama = %+v", cfg.Ollama)
	}
	if cfg.Notes.CategoryThreshold != 0.8 {
		t.Errorf("Notes.CategoryThreshold = %v", cfg.Notes.CategoryThreshold)
	}
	if cfg.Jobs.ReindexSchedule != "@every 15m" {
		t.Errorf("Jobs.ReindexSchedule = %q", cfg.Jobs.ReindexSchedule)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.OpenAI.APIKey != "" || cfg.Anthropic.APIKey != "" {
		t.Error("API keys set without configuration")
	}
}

// TestFileParsing verifies that fields are read from the JSON file.
func TestFileParsing(t *testing.T) {
	isolate(t)
	b := writeTempConfig(t, `{
		"server.port": 5000,
		"server.cors_origins": ["http://a.test", "http://b.test"],
		"llm.default_provider": "Anthropic",
		"llm.temperature": 0.2,
		"llm.max_iterations": "4",
		"notes.category_threshold": "0.65",
		"openai.api_key": "file-secret-ignored"
	}`)

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if !slices.Equal(cfg.Server.CORSOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.LLM.DefaultProvider != "anthropic" || cfg.LLM.Temperature != 0.2 || cfg.LLM.MaxIterations != 4 {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Notes.CategoryThreshold != 0.65 {
		t.Errorf("CategoryThreshold = %v", cfg.Notes.CategoryThreshold)
	}
	if cfg.OpenAI.APIKey != "" {
		t.Errorf("secret read from config file: %q", cfg.OpenAI.APIKey)
	}
}

func TestFileParsing_BadInt(t *testing.T) {
	isolate(t)
	_, err := loadWith(writeTempConfig(t, `{"server.port": 1.5}`), "")
	if err == nil || !strings.Contains(err.Error(), "server.port") {
		t.Errorf("err = %v", err)
	}
}

// TestEnvOverride verifies that environment variables override file values
// and that unparseable values fall back.
func TestEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGIN", "http://x.test, http://y.test,")
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("LLM_TEMPERATURE", "warm")

	cfg, err := loadWith(writeTempConfig(t, `{"server.port": 5000}`), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if !slices.Equal(cfg.Server.CORSOrigins, []string{"http://x.test", "http://y.test"}) {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.OpenAI.APIKey != "env-key" {
		t.Errorf("OpenAI.APIKey = %q, want %q", cfg.OpenAI.APIKey, "env-key")
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want default after bad value", cfg.LLM.Temperature)
	}
}

// TestDotenv verifies .env values apply but never beat real environment variables.
func TestDotenv(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_MODEL", "gpt-from-env")
	env := writeEnvFile(t, "OPENAI_MODEL=gpt-from-dotenv\nANTHROPIC_API_KEY=sk-ant-dotenv\nLOG_LEVEL=DEBUG\n")

	cfg, err := loadWith(writeTempConfig(t, `{}`), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.Model != "gpt-from-env" {
		t.Errorf("OpenAI.Model = %q, environment should win", cfg.OpenAI.Model)
	}
	if cfg.Anthropic.APIKey != "sk-ant-dotenv" {
		t.Errorf("Anthropic.APIKey = %q", cfg.Anthropic.APIKey)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		t.Error(".env leaked into the process environment")
	}
}

func TestDotenv_Missing(t *testing.T) {
	isolate(t)
	if _, err := loadWith(writeTempConfig(t, `{}`), filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

// TestSecretsFallback verifies secrets.json is consulted when no key is in the environment.
func TestSecretsFallback(t *testing.T) {
	dataDir := isolate(t)
	if err := SetSecret(dataDir, "anthropic.api_key", "stored-secret"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	if err := SetSecret(dataDir, "openai.api_key", "stored-openai"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "env-wins")

	cfg, err := loadWith(writeTempConfig(t, `{}`), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Anthropic.APIKey != "stored-secret" {
		t.Errorf("Anthropic.APIKey = %q, want %q", cfg.Anthropic.APIKey, "stored-secret")
	}
	if cfg.OpenAI.APIKey != "env-wins" {
		t.Errorf("OpenAI.APIKey = %q, want %q", cfg.OpenAI.APIKey, "env-wins")
	}

	info, err := os.Stat(filepath.Join(dataDir, "secrets.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets.json mode = %o, want 600", perm)
	}

	if err := SetSecret(dataDir, "anthropic.api_key", ""); err != nil {
		t.Fatalf("clearing secret: %v", err)
	}
	cfg, _ = loadWith(writeTempConfig(t, `{}`), "")
	if cfg.Anthropic.APIKey != "" {
		t.Errorf("cleared secret still loaded: %q", cfg.Anthropic.APIKey)
	}
}

func TestSetSecret_RejectsPlainKeys(t *testing.T) {
	if err := SetSecret(t.TempDir(), "server.port", "1"); err == nil {
		t.Error("expected error for non-secret key")
	}
}

func TestValidate(t *testing.T) {
	base := defaults()
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"no keys", func(c *Config) {}, "no LLM API key"},
		{"openai default", func(c *Config) { c.OpenAI.APIKey = "k" }, ""},
		{"anthropic only, default openai", func(c *Config) { c.Anthropic.APIKey = "k" }, "OPENAI_API_KEY is not set"},
		{"anthropic default", func(c *Config) {
			c.Anthropic.APIKey = "k"
			c.LLM.DefaultProvider = "anthropic"
		}, ""},
		{"unknown provider", func(c *Config) {
			c.OpenAI.APIKey = "k"
			c.LLM.DefaultProvider = "gemini"
		}, "unknown llm.default_provider"},
		{"bad embedding provider", func(c *Config) {
			c.OpenAI.APIKey = "k"
			c.Embedding.Provider = "cohere"
		}, "unknown embedding.provider"},
		{"zero iterations", func(c *Config) {
			c.OpenAI.APIKey = "k"
			c.LLM.MaxIterations = 0
		}, "max_iterations"},
		{"threshold out of range", func(c *Config) {
			c.OpenAI.APIKey = "k"
			c.Notes.CategoryThreshold = 1.5
		}, "category_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetKey(t *testing.T) {
	isolate(t)
	b := writeTempConfig(t, `{}`)

	if err := setKey(b, "server.port", "4100"); err != nil {
		t.Fatalf("setKey port: %v", err)
	}
	if err := setKey(b, "server.cors_origins", "http://a.test,http://b.test"); err != nil {
		t.Fatalf("setKey origins: %v", err)
	}
	if err := setKey(b, "llm.temperature", "0.3"); err != nil {
		t.Fatalf("setKey temperature: %v", err)
	}

	cfg, err := loadWith(newFileBackend(b.path), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 4100 || len(cfg.Server.CORSOrigins) != 2 || cfg.LLM.Temperature != 0.3 {
		t.Errorf("reloaded config = %+v %+v", cfg.Server, cfg.LLM)
	}

	for _, tc := range []struct{ key, value string }{
		{"server.port", "abc"},
		{"llm.temperature", "hot"},
		{"openai.api_key", "sk-123"},
		{"nope.key", "x"},
	} {
		if err := setKey(b, tc.key, tc.value); err == nil {
			t.Errorf("setKey(%q, %q) succeeded", tc.key, tc.value)
		}
	}
}

func TestShowAll_MasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.OpenAI.APIKey = "sk-abcdefghijkl"

	got := make(map[string]string)
	for _, info := range ShowAll(cfg) {
		got[info.Key] = info.Value
	}
	if got["openai.api_key"] != "****ijkl" {
		t.Errorf("openai.api_key shown as %q", got["openai.api_key"])
	}
	if got["anthropic.api_key"] != "(not set)" {
		t.Errorf("anthropic.api_key shown as %q", got["anthropic.api_key"])
	}
	if got["server.port"] != "3001" {
		t.Errorf("server.port shown as %q", got["server.port"])
	}
	if len(got) != len(ValidKeys())+len(SecretKeys()) {
		t.Errorf("ShowAll returned %d keys", len(got))
	}
}

func TestAddr(t *testing.T) {
	cfg := defaults()
	if got := cfg.Addr(); got != "127.0.0.1:3001" {
		t.Errorf("Addr() = %q", got)
	}
}
