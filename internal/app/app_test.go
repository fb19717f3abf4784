package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docsheet/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.ScratchDir = t.TempDir()
	return cfg
}

func TestNew_NoCredentials(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Router.Available())
	assert.Equal(t, "none", a.Router.Name())
	assert.Nil(t, a.Vision)
	assert.Equal(t, "tesseract", a.OCR.Engine())
	require.NotNil(t, a.Converter)

	deps := a.APIDeps(a.NewOrchestrator())
	assert.Nil(t, deps.Stats)
	assert.NotNil(t, deps.Extractor)
}

func TestNew_SecondaryOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.OpenAIAPIKey = "sk-test"
	cfg.OCR.Engine = "vision"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Router.Available())
	assert.Equal(t, "openai", a.Router.Name())
	require.NotNil(t, a.Vision)
	assert.Equal(t, "openai", a.Vision.Name())
	assert.Equal(t, "vision", a.OCR.Engine())
	assert.NotNil(t, a.APIDeps(nil).Stats)
}

func TestNew_VisionOCRWithoutBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCR.Engine = "vision"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "tesseract", a.OCR.Engine())
}

func TestStartSweeper(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	require.NoError(t, a.StartSweeper())
	a.Close()
}
