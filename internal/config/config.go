package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/efebarandurmaz/twin/internal/llm"
)

// Config holds all application configuration.
type Config struct {
	Groq      GroqConfig      `mapstructure:"groq"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Port      int             `mapstructure:"port"`
	Character string          `mapstructure:"character_path"`
	PublicDir string          `mapstructure:"public_dir"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type GroqConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig caps upstream calls. Zero requests_per_minute disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// Credentials returns the upstream credentials used for provider selection.
func (c *Config) Credentials() llm.Credentials {
	return llm.Credentials{
		GroqAPIKey:    c.Groq.APIKey,
		GroqModel:     c.Groq.Model,
		GroqBaseURL:   c.Groq.BaseURL,
		OpenAIAPIKey:  c.OpenAI.APIKey,
		OpenAIModel:   c.OpenAI.Model,
		OpenAIBaseURL: c.OpenAI.BaseURL,
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch {
	case c.Groq.APIKey == "" && c.OpenAI.APIKey == "":
		warnings = append(warnings, "no AI provider configured: set GROQ_API_KEY or OPENAI_API_KEY; chat requests will fail")
	case c.Groq.APIKey != "" && c.OpenAI.APIKey != "":
		warnings = append(warnings, "both GROQ_API_KEY and OPENAI_API_KEY are set; groq takes precedence and OPENAI_API_KEY is ignored")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("trace sample_rate %.2f is outside range [0.0, 1.0]", c.Telemetry.SampleRate))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		warnings = append(warnings, fmt.Sprintf("rate_limit requests_per_minute %d is negative; rate limiting is disabled", c.RateLimit.RequestsPerMinute))
	}

	if c.Port <= 0 || c.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("port %d is not a valid TCP port", c.Port))
	}

	return warnings
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an optional YAML config file. Empty skips it.
	File string
	// EnvFile is a dotenv file loaded into the process environment before
	// reading. A missing file is ignored. Empty skips it.
	EnvFile string
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string][]string{
	"groq.api_key":                   {"GROQ_API_KEY"},
	"groq.model":                     {"GROQ_MODEL"},
	"groq.base_url":                  {"GROQ_BASE_URL"},
	"openai.api_key":                 {"OPENAI_API_KEY"},
	"openai.model":                   {"OPENAI_MODEL"},
	"openai.base_url":                {"OPENAI_BASE_URL"},
	"port":                           {"PORT", "TWIN_PORT"},
	"character_path":                 {"TWIN_CHARACTER_PATH"},
	"public_dir":                     {"TWIN_PUBLIC_DIR"},
	"log.level":                      {"TWIN_LOG_LEVEL"},
	"log.format":                     {"TWIN_LOG_FORMAT"},
	"telemetry.otlp_endpoint":        {"TWIN_OTLP_ENDPOINT"},
	"telemetry.sample_rate":          {"TWIN_TRACE_SAMPLE_RATE"},
	"rate_limit.requests_per_minute": {"TWIN_RATE_LIMIT_RPM"},
	"rate_limit.burst":               {"TWIN_RATE_LIMIT_BURST"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("groq.model", llm.DefaultGroqModel)
	v.SetDefault("openai.model", llm.DefaultOpenAIModel)
	v.SetDefault("port", 3000)
	v.SetDefault("character_path", "character.json")
	v.SetDefault("public_dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("rate_limit.requests_per_minute", 0)
	v.SetDefault("rate_limit.burst", 3)
}

// Load reads configuration from the dotenv file, the optional config file
// and the environment, in increasing order of precedence. Variables already
// present in the environment are never overwritten by the dotenv file.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}
