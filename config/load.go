package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads a .env file next to path (if any), expands ${VAR} references in
// the YAML, applies defaults and validates. An empty path yields defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	envFile := ".env"
	if path != "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errs.E(errs.KindConfig, "load .env", err)
	}

	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.E(errs.KindConfig, "read config", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			return nil, errs.E(errs.KindConfig, "parse config", err)
		}
	}
	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errs.E(errs.KindConfig, "validate config", err)
	}
	return cfg, nil
}

// applyEnvOverrides fills secrets from the environment when the file leaves them empty.
func (c *Config) applyEnvOverrides() {
	if c.Completion.APIKey == "" {
		c.Completion.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Moderation.APIKey == "" {
		c.Moderation.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Search.APIKey == "" {
		c.Search.APIKey = os.Getenv("NSX_API_KEY")
	}
	if c.Session.Redis.Addr == "" {
		c.Session.Redis.Addr = os.Getenv("REDIS_ADDR")
	}
	if c.History.DSN == "" {
		c.History.DSN = os.Getenv("HISTORY_DSN")
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Completion.Provider == "" {
		c.Completion.Provider = "openai"
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-3.5-turbo"
	}
	if c.Completion.MaxTokens == 0 {
		c.Completion.MaxTokens = 512
	}
	if c.Completion.TimeoutMs == 0 {
		c.Completion.TimeoutMs = 20000
	}

	if c.Moderation.Provider == "" {
		c.Moderation.Provider = "openai"
	}
	if c.Moderation.TimeoutMs == 0 {
		c.Moderation.TimeoutMs = 5000
	}

	if c.Search.Endpoint == "" {
		c.Search.Endpoint = "https://nsx.ai/api/search"
	}
	if c.Search.ScoreEndpoint == "" {
		c.Search.ScoreEndpoint = "https://nsx.ai/api/inference/score"
	}
	if c.Search.SenseEndpoint == "" {
		c.Search.SenseEndpoint = "https://nsx.ai/api/multidocqa"
	}
	if c.Search.Language == "" {
		c.Search.Language = "pt"
	}
	if c.Search.MaxDocsToReturn == 0 {
		c.Search.MaxDocsToReturn = 5
	}
	if c.Search.NumDocs == 0 {
		c.Search.NumDocs = 1
	}
	if c.Search.TimeoutMs == 0 {
		c.Search.TimeoutMs = 10000
	}
	if c.Search.SenseTimeoutMs == 0 {
		c.Search.SenseTimeoutMs = 20000
	}

	r := &c.Reasoning
	if r.Handler == "" {
		r.Handler = HandlerReAct
	}
	if r.MaxIterations == 0 {
		r.MaxIterations = 6
	}
	if r.MaxTokensPrompt == 0 {
		r.MaxTokensPrompt = 4000
	}
	if r.MaxTokensChatHistory == 0 {
		r.MaxTokensChatHistory = 1500
	}
	if r.MaxFAQQuestions == 0 {
		r.MaxFAQQuestions = 5
	}
	if r.MaxTokensFAQPrompt == 0 {
		r.MaxTokensFAQPrompt = 3700
	}
	if r.MaxTokensFunctionCall == 0 {
		r.MaxTokensFunctionCall = 512
	}
	if r.ParallelObservations == 0 {
		r.ParallelObservations = 4
	}
	if r.EncodingModel == "" {
		r.EncodingModel = "gpt-3.5-turbo"
	}

	if c.Session.Store == "" {
		c.Session.Store = "inmemory"
	}
	if c.Session.TTLSeconds == 0 {
		c.Session.TTLSeconds = 3600
	}
	if c.Session.Redis.KeyPrefix == "" {
		c.Session.Redis.KeyPrefix = "nsxbot:"
	}

	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = 3
	}
	if c.HTTP.TimeoutMs == 0 {
		c.HTTP.TimeoutMs = 10000
	}

	if c.History.Driver == "" {
		c.History.Driver = "none"
	}
	if c.History.CacheSize == 0 {
		c.History.CacheSize = 128
	}
	if c.History.CacheTTLSecond == 0 {
		c.History.CacheTTLSecond = 300
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = "/metrics"
	}
}

const (
	HandlerReAct        = "react"
	HandlerFunctionCall = "function_call"
)

// String renders the config with secrets masked, for startup logs.
func (c Config) String() string {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.Completion.APIKey = mask(c.Completion.APIKey)
	c.Moderation.APIKey = mask(c.Moderation.APIKey)
	c.Search.APIKey = mask(c.Search.APIKey)
	c.Session.Redis.Password = mask(c.Session.Redis.Password)
	c.History.DSN = mask(c.History.DSN)
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(b)
}
