package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/efebarandurmaz/twin/internal/llm"
)

// clearEnv blanks every recognized variable for the duration of the test.
// Viper treats empty variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, envs := range envBindings {
		for _, e := range envs {
			t.Setenv(e, "")
		}
	}
}

func validConfig() *Config {
	return &Config{
		Groq:      GroqConfig{APIKey: "gsk"},
		Port:      3000,
		Telemetry: TelemetryConfig{SampleRate: 1.0},
	}
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestValidate_Valid(t *testing.T) {
	if warnings := validConfig().Validate(); len(warnings) != 0 {
		t.Errorf("valid config should have no warnings, got %v", warnings)
	}
}

func TestValidate_NoProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Groq.APIKey = ""
	if !hasWarning(cfg.Validate(), "no AI provider") {
		t.Error("expected warning about missing provider")
	}
}

func TestValidate_BothProviders(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAI.APIKey = "sk"
	if !hasWarning(cfg.Validate(), "groq takes precedence") {
		t.Error("expected warning about both providers")
	}
}

func TestValidate_SampleRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want bool
	}{
		{"zero", 0, false},
		{"half", 0.5, false},
		{"one", 1.0, false},
		{"negative", -0.1, true},
		{"too_high", 1.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Telemetry.SampleRate = tt.rate
			if got := hasWarning(cfg.Validate(), "sample_rate"); got != tt.want {
				t.Errorf("rate=%.1f: hasWarn=%v, want=%v", tt.rate, got, tt.want)
			}
		})
	}
}

func TestValidate_NegativeRateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.RequestsPerMinute = -5
	if !hasWarning(cfg.Validate(), "requests_per_minute") {
		t.Error("expected warning about negative rate limit")
	}
}

func TestValidate_Port(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.Port = port
		if !hasWarning(cfg.Validate(), "port") {
			t.Errorf("port %d: expected warning", port)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.Groq.Model != llm.DefaultGroqModel {
		t.Errorf("expected default groq model, got %q", cfg.Groq.Model)
	}
	if cfg.OpenAI.Model != "gpt-4" {
		t.Errorf("expected default openai model gpt-4, got %q", cfg.OpenAI.Model)
	}
	if cfg.Character != "character.json" {
		t.Errorf("expected default character path, got %q", cfg.Character)
	}
	if cfg.PublicDir != "" {
		t.Errorf("expected embedded assets by default, got %q", cfg.PublicDir)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
	if cfg.RateLimit.RequestsPerMinute != 0 {
		t.Errorf("rate limiting should be off by default, got %+v", cfg.RateLimit)
	}
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-env")
	t.Setenv("GROQ_MODEL", "llama-3.1-8b-instant")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("PORT", "8080")
	t.Setenv("TWIN_CHARACTER_PATH", "/data/me.json")
	t.Setenv("TWIN_TRACE_SAMPLE_RATE", "0.25")
	t.Setenv("TWIN_RATE_LIMIT_RPM", "30")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Groq.APIKey != "gsk-env" || cfg.Groq.Model != "llama-3.1-8b-instant" {
		t.Errorf("unexpected groq config %+v", cfg.Groq)
	}
	if cfg.OpenAI.APIKey != "sk-env" {
		t.Errorf("unexpected openai key %q", cfg.OpenAI.APIKey)
	}
	if cfg.Port != 8080 || cfg.Addr() != ":8080" {
		t.Errorf("unexpected port %d", cfg.Port)
	}
	if cfg.Character != "/data/me.json" {
		t.Errorf("unexpected character path %q", cfg.Character)
	}
	if cfg.Telemetry.SampleRate != 0.25 {
		t.Errorf("unexpected sample rate %v", cfg.Telemetry.SampleRate)
	}
	if cfg.RateLimit.RequestsPerMinute != 30 || cfg.RateLimit.Burst != 3 {
		t.Errorf("unexpected rate limit %+v", cfg.RateLimit)
	}

	sel := llm.Select(cfg.Credentials())
	if sel.Kind != llm.KindDirectHTTP || sel.Provider != "groq" {
		t.Errorf("expected groq to take precedence, got %+v", sel)
	}
}

func TestLoad_ConfigFileAndEnvPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "twin.yaml")
	yaml := "port: 4000\nopenai:\n  api_key: sk-file\n  model: gpt-4o\nlog:\n  format: json\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	cfg, err := Load(Options{File: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("expected port from file, got %d", cfg.Port)
	}
	if cfg.OpenAI.APIKey != "sk-file" {
		t.Errorf("expected key from file, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected env to override file, got %q", cfg.OpenAI.Model)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json log format, got %q", cfg.Log.Format)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv only fills variables that are absent, not empty.
	os.Unsetenv("GROQ_API_KEY")
	os.Unsetenv("PORT")
	t.Cleanup(func() {
		os.Unsetenv("GROQ_API_KEY")
		os.Unsetenv("PORT")
	})

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GROQ_API_KEY=gsk-dotenv\nPORT=5050\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Groq.APIKey != "gsk-dotenv" {
		t.Errorf("expected key from .env, got %q", cfg.Groq.APIKey)
	}
	if cfg.Port != 5050 {
		t.Errorf("expected port from .env, got %d", cfg.Port)
	}
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-process")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GROQ_API_KEY=gsk-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Groq.APIKey != "gsk-process" {
		t.Errorf("process env should win over .env, got %q", cfg.Groq.APIKey)
	}
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	clearEnv(t)
	if _, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), ".env")}); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}
