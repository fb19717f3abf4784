package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini", cfg.LLM.Primary)
	assert.Equal(t, "openai", cfg.LLM.Secondary)
	assert.Equal(t, 8, cfg.LLM.PrimaryCallsPerMinute)
	assert.Equal(t, 6, cfg.Generation.MaxSubtopics)
	assert.Equal(t, 10, cfg.Images.LineThreshold)
	assert.Equal(t, time.Hour, cfg.JobTTL.Duration)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("PRIMARY_CALLS_PER_MINUTE", "3")
	t.Setenv("SUBTOPIC_TIMEOUT", "5s")
	t.Setenv("DESCRIBE_IMAGES", "true")
	t.Setenv("WORKER_COUNT", "-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9191", cfg.Port)
	assert.Equal(t, 3, cfg.LLM.PrimaryCallsPerMinute)
	assert.Equal(t, 5*time.Second, cfg.Generation.SubtopicTimeout.Duration)
	assert.True(t, cfg.Images.DescribeImages)
	assert.Equal(t, 2, cfg.WorkerCount, "negative worker count clamps to default")
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsheet.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = "7000"

[llm]
primary = "claude"
secondary = "gemini"
primary_min_interval = "500ms"

[generation]
max_subtopics = 4
subtopic_delay = "0s"
`), 0o644))
	t.Setenv("DOCSHEET_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "claude", cfg.LLM.Primary)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.PrimaryMinInterval.Duration)
	assert.Equal(t, 4, cfg.Generation.MaxSubtopics)
	assert.Equal(t, time.Duration(0), cfg.Generation.SubtopicDelay.Duration)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.GeminiModel, "unset keys keep defaults")
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsheet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7001\"\nocr:\n  language: deu\n"), 0o644))
	t.Setenv("DOCSHEET_CONFIG", path)
	t.Setenv("PORT", "7002")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7002", cfg.Port, "env wins over file")
	assert.Equal(t, "deu", cfg.OCR.Language)
}

func TestLoad_UnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsheet.ini")
	require.NoError(t, os.WriteFile(path, []byte("port=1"), 0o644))
	t.Setenv("DOCSHEET_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Primary = "watson"
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.LLM.Secondary = cfg.LLM.Primary
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Port = "http"
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.OCR.Engine = "vision"
	cfg.OCR.TesseractCmd = ""
	require.NoError(t, cfg.Validate())
}

func TestHasKey(t *testing.T) {
	l := LLMConfig{GeminiAPIKey: "g", OllamaHost: "http://localhost:11434"}
	assert.True(t, l.HasKey("gemini"))
	assert.True(t, l.HasKey("ollama"))
	assert.False(t, l.HasKey("openai"))
	assert.False(t, l.HasKey("unknown"))
}
