package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
)

func TestDefaults(t *testing.T) {
	c := Default()

	assert.Equal(t, 6, c.Reasoning.MaxIterations)
	assert.Equal(t, 4000, c.Reasoning.MaxTokensPrompt)
	assert.Equal(t, 1500, c.Reasoning.MaxTokensChatHistory)
	assert.Equal(t, 5, c.Reasoning.MaxFAQQuestions)
	assert.Equal(t, 3700, c.Reasoning.MaxTokensFAQPrompt)
	assert.Equal(t, 3600, c.Session.TTLSeconds)
	assert.Equal(t, 5, c.Search.MaxDocsToReturn)
	assert.Equal(t, "gpt-3.5-turbo", c.Reasoning.EncodingModel)
	assert.Equal(t, HandlerReAct, c.Reasoning.Handler)
	assert.True(t, c.ModerationFailOpen())
	assert.NoError(t, c.Validate())
}

func TestLoad_ExpandsEnvAndOverrides(t *testing.T) {
	t.Setenv("NSX_API_KEY", "nsx-key")
	t.Setenv("TEST_REDIS", "localhost:6380")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
completion:
  provider: prompt_answerer
  base_url: http://localhost:7000/api/openai/completions
  model: gpt-4
reasoning:
  handler: function_call
  max_iterations: 3
moderation:
  provider: http
  base_url: http://localhost:7000/api/openai/moderations
  fail_open: false
session:
  store: redis
  redis:
    addr: ${TEST_REDIS}
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nsx-key", c.Search.APIKey)
	assert.Equal(t, "localhost:6380", c.Session.Redis.Addr)
	assert.Equal(t, 3, c.Reasoning.MaxIterations)
	assert.Equal(t, HandlerFunctionCall, c.Reasoning.Handler)
	assert.False(t, c.ModerationFailOpen())
	assert.Equal(t, 4000, c.Reasoning.MaxTokensPrompt)
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NSX_API_KEY=from-dotenv\n"), 0o600))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  language: en\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("NSX_API_KEY") })

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", c.Search.APIKey)
	assert.Equal(t, "en", c.Search.Language)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	c := Default()
	c.Reasoning.Handler = "tree"
	c.Session.Store = "redis"
	c.History.Driver = "postgres"

	err := c.Validate()
	require.Error(t, err)
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"reasoning.handler", "session.redis.addr", "history.dsn"}, fields)
}

func TestLoad_BadFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
}

func TestStringMasksSecrets(t *testing.T) {
	c := Default()
	c.Search.APIKey = "secret"
	assert.NotContains(t, c.String(), "secret")
}
