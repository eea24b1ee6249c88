package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citecheck/internal/model"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".citecheck", "config.yaml")

	require.NoError(t, writeDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg := &model.Config{}
	require.NoError(t, v.Unmarshal(cfg))

	defaults := model.DefaultConfig()
	assert.Equal(t, defaults.HTTP.Timeout, cfg.HTTP.Timeout)
	assert.Equal(t, defaults.Cache.DiskTTL, cfg.Cache.DiskTTL)
	assert.Equal(t, defaults.Extraction.BlockTags, cfg.Extraction.BlockTags)
	assert.Equal(t, defaults.RateLimiting, cfg.RateLimiting)

	err := writeDefaultConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: ollama\n  model: llama3\nhttp:\n  timeout: 5s\n"), 0o644))
	t.Setenv("CITECHECK_LLM_MODEL", "qwen2.5")

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
	initConfig()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "qwen2.5", cfg.LLM.Model)
	assert.Equal(t, "5s", cfg.HTTP.Timeout.String())
	assert.Equal(t, model.DefaultConfig().HTTP.UserAgent, cfg.HTTP.UserAgent)

	llmProvider, llmModel = "openai", ""
	t.Cleanup(func() { llmProvider = "" })
	applyLLMFlags(cfg)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "qwen2.5", cfg.LLM.Model)
}
