package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads "30s"-style strings from config files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Port string `toml:"port" yaml:"port" validate:"required,numeric"`

	// Bearer token for /api routes; empty disables auth.
	APIKey string `toml:"api_key" yaml:"api_key"`

	LLM        LLMConfig        `toml:"llm" yaml:"llm"`
	Generation GenerationConfig `toml:"generation" yaml:"generation"`
	OCR        OCRConfig        `toml:"ocr" yaml:"ocr"`
	Images     ImageConfig      `toml:"images" yaml:"images"`

	// Worker pool
	WorkerCount  int `toml:"worker_count" yaml:"worker_count" validate:"min=1"`
	MaxQueueSize int `toml:"max_queue_size" yaml:"max_queue_size" validate:"min=1"`

	// Upload limits
	MaxUploadBytes int64 `toml:"max_upload_bytes" yaml:"max_upload_bytes" validate:"min=1"`

	// Job state
	JobTTL Duration `toml:"job_ttl" yaml:"job_ttl"`

	// Scratch files for per-image extraction
	ScratchDir    string   `toml:"scratch_dir" yaml:"scratch_dir"`
	ScratchMaxAge Duration `toml:"scratch_max_age" yaml:"scratch_max_age"`
}

type LLMConfig struct {
	Primary   string `toml:"primary" yaml:"primary" validate:"omitempty,oneof=gemini openai claude mistral ollama"`
	Secondary string `toml:"secondary" yaml:"secondary" validate:"omitempty,oneof=gemini openai claude mistral ollama"`
	// Vision picks the backend used for image extraction; empty means the
	// first configured vision-capable backend.
	Vision string `toml:"vision" yaml:"vision" validate:"omitempty,oneof=gemini openai claude mistral ollama"`

	GeminiAPIKey    string `toml:"gemini_api_key" yaml:"gemini_api_key"`
	GeminiModel     string `toml:"gemini_model" yaml:"gemini_model"`
	OpenAIAPIKey    string `toml:"openai_api_key" yaml:"openai_api_key"`
	OpenAIModel     string `toml:"openai_model" yaml:"openai_model"`
	AnthropicAPIKey string `toml:"anthropic_api_key" yaml:"anthropic_api_key"`
	AnthropicModel  string `toml:"anthropic_model" yaml:"anthropic_model"`
	MistralAPIKey   string `toml:"mistral_api_key" yaml:"mistral_api_key"`
	MistralModel    string `toml:"mistral_model" yaml:"mistral_model"`
	OllamaHost      string `toml:"ollama_host" yaml:"ollama_host"`
	OllamaModel     string `toml:"ollama_model" yaml:"ollama_model"`

	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens" validate:"min=1"`
	Temperature float64 `toml:"temperature" yaml:"temperature" validate:"min=0,max=2"`

	// Primary backend budget
	PrimaryCallsPerMinute int      `toml:"primary_calls_per_minute" yaml:"primary_calls_per_minute" validate:"min=1"`
	PrimaryMinInterval    Duration `toml:"primary_min_interval" yaml:"primary_min_interval"`
}

type GenerationConfig struct {
	AnalyzeTimeout  Duration `toml:"analyze_timeout" yaml:"analyze_timeout"`
	QuickTimeout    Duration `toml:"quick_timeout" yaml:"quick_timeout"`
	SubtopicTimeout Duration `toml:"subtopic_timeout" yaml:"subtopic_timeout"`
	SubtopicDelay   Duration `toml:"subtopic_delay" yaml:"subtopic_delay"`
	MaxSubtopics    int      `toml:"max_subtopics" yaml:"max_subtopics" validate:"min=1,max=12"`
}

type OCRConfig struct {
	Engine       string `toml:"engine" yaml:"engine" validate:"oneof=tesseract vision"`
	TesseractCmd string `toml:"tesseract_cmd" yaml:"tesseract_cmd"`
	Language     string `toml:"language" yaml:"language" validate:"required"`
}

type ImageConfig struct {
	Workers              int  `toml:"workers" yaml:"workers" validate:"min=1"`
	MinSide              int  `toml:"min_side" yaml:"min_side" validate:"min=0"`
	LineThreshold        int  `toml:"line_threshold" yaml:"line_threshold" validate:"min=1"`
	DescribeImages       bool `toml:"describe_images" yaml:"describe_images"`
	DiagramTextThreshold int  `toml:"diagram_text_threshold" yaml:"diagram_text_threshold" validate:"min=0"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port: "8080",
		LLM: LLMConfig{
			Primary:               "gemini",
			Secondary:             "openai",
			GeminiModel:           "gemini-2.5-flash",
			OpenAIModel:           "gpt-4o-mini",
			AnthropicModel:        "claude-sonnet-4-5-20250929",
			MistralModel:          "pixtral-12b-2409",
			OllamaModel:           "llava",
			MaxTokens:             1000,
			Temperature:           0.3,
			PrimaryCallsPerMinute: 8,
			PrimaryMinInterval:    Duration{2 * time.Second},
		},
		Generation: GenerationConfig{
			AnalyzeTimeout:  Duration{30 * time.Second},
			QuickTimeout:    Duration{10 * time.Second},
			SubtopicTimeout: Duration{30 * time.Second},
			SubtopicDelay:   Duration{1 * time.Second},
			MaxSubtopics:    6,
		},
		OCR: OCRConfig{
			Engine:       "tesseract",
			TesseractCmd: "tesseract",
			Language:     "eng",
		},
		Images: ImageConfig{
			Workers:              4,
			MinSide:              16,
			LineThreshold:        10,
			DiagramTextThreshold: 20,
		},
		WorkerCount:    2,
		MaxQueueSize:   50,
		MaxUploadBytes: 52428800, // 50MB
		JobTTL:         Duration{1 * time.Hour},
		ScratchDir:     os.TempDir(),
		ScratchMaxAge:  Duration{1 * time.Hour},
	}
}

// Load reads .env (if present), the optional DOCSHEET_CONFIG file, and then
// environment variables, in that order of increasing precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("DOCSHEET_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	clamp(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config %s: unsupported format (want .toml, .yaml or .yml)", path)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCSHEET_API_KEY", cfg.APIKey)

	l := &cfg.LLM
	l.Primary = envOr("LLM_PRIMARY", l.Primary)
	l.Secondary = envOr("LLM_SECONDARY", l.Secondary)
	l.Vision = envOr("LLM_VISION", l.Vision)
	l.GeminiAPIKey = envOr("GEMINI_API_KEY", l.GeminiAPIKey)
	l.GeminiModel = envOr("GEMINI_MODEL", l.GeminiModel)
	l.OpenAIAPIKey = envOr("OPENAI_API_KEY", l.OpenAIAPIKey)
	l.OpenAIModel = envOr("OPENAI_MODEL", l.OpenAIModel)
	l.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", l.AnthropicAPIKey)
	l.AnthropicModel = envOr("ANTHROPIC_MODEL", l.AnthropicModel)
	l.MistralAPIKey = envOr("MISTRAL_API_KEY", l.MistralAPIKey)
	l.MistralModel = envOr("MISTRAL_MODEL", l.MistralModel)
	l.OllamaHost = envOr("OLLAMA_HOST", l.OllamaHost)
	l.OllamaModel = envOr("OLLAMA_MODEL", l.OllamaModel)
	l.MaxTokens = envInt("LLM_MAX_TOKENS", l.MaxTokens)
	l.Temperature = envFloat("LLM_TEMPERATURE", l.Temperature)
	l.PrimaryCallsPerMinute = envInt("PRIMARY_CALLS_PER_MINUTE", l.PrimaryCallsPerMinute)
	l.PrimaryMinInterval.Duration = envDuration("PRIMARY_MIN_INTERVAL", l.PrimaryMinInterval.Duration)

	g := &cfg.Generation
	g.AnalyzeTimeout.Duration = envDuration("ANALYZE_TIMEOUT", g.AnalyzeTimeout.Duration)
	g.QuickTimeout.Duration = envDuration("QUICK_TIMEOUT", g.QuickTimeout.Duration)
	g.SubtopicTimeout.Duration = envDuration("SUBTOPIC_TIMEOUT", g.SubtopicTimeout.Duration)
	g.SubtopicDelay.Duration = envDuration("SUBTOPIC_DELAY", g.SubtopicDelay.Duration)
	g.MaxSubtopics = envInt("MAX_SUBTOPICS", g.MaxSubtopics)

	cfg.OCR.Engine = envOr("OCR_ENGINE", cfg.OCR.Engine)
	cfg.OCR.TesseractCmd = envOr("TESSERACT_CMD", cfg.OCR.TesseractCmd)
	cfg.OCR.Language = envOr("OCR_LANGUAGE", cfg.OCR.Language)

	im := &cfg.Images
	im.Workers = envInt("IMAGE_WORKERS", im.Workers)
	im.MinSide = envInt("MIN_IMAGE_SIDE", im.MinSide)
	im.LineThreshold = envInt("LINE_THRESHOLD", im.LineThreshold)
	im.DescribeImages = envBool("DESCRIBE_IMAGES", im.DescribeImages)
	im.DiagramTextThreshold = envInt("DIAGRAM_TEXT_THRESHOLD", im.DiagramTextThreshold)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL.Duration = envDuration("JOB_TTL", cfg.JobTTL.Duration)
	cfg.ScratchDir = envOr("SCRATCH_DIR", cfg.ScratchDir)
	cfg.ScratchMaxAge.Duration = envDuration("SCRATCH_MAX_AGE", cfg.ScratchMaxAge.Duration)
}

// clamp resets out-of-range values to their defaults.
func clamp(cfg *Config) {
	def := Defaults()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.JobTTL.Duration <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.ScratchMaxAge.Duration <= 0 {
		cfg.ScratchMaxAge = def.ScratchMaxAge
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = def.ScratchDir
	}
	if cfg.Images.Workers <= 0 {
		cfg.Images.Workers = def.Images.Workers
	}
	if cfg.Images.LineThreshold <= 0 {
		cfg.Images.LineThreshold = def.Images.LineThreshold
	}
	if cfg.LLM.PrimaryCallsPerMinute <= 0 {
		cfg.LLM.PrimaryCallsPerMinute = def.LLM.PrimaryCallsPerMinute
	}
	if cfg.LLM.PrimaryMinInterval.Duration < 0 {
		cfg.LLM.PrimaryMinInterval = def.LLM.PrimaryMinInterval
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	g := &cfg.Generation
	if g.MaxSubtopics <= 0 {
		g.MaxSubtopics = def.Generation.MaxSubtopics
	}
	if g.AnalyzeTimeout.Duration <= 0 {
		g.AnalyzeTimeout = def.Generation.AnalyzeTimeout
	}
	if g.QuickTimeout.Duration <= 0 {
		g.QuickTimeout = def.Generation.QuickTimeout
	}
	if g.SubtopicTimeout.Duration <= 0 {
		g.SubtopicTimeout = def.Generation.SubtopicTimeout
	}
	if g.SubtopicDelay.Duration < 0 {
		g.SubtopicDelay = def.Generation.SubtopicDelay
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if c.LLM.Primary != "" && c.LLM.Primary == c.LLM.Secondary {
		return fmt.Errorf("LLM_SECONDARY must differ from LLM_PRIMARY")
	}
	if c.OCR.Engine == "tesseract" && c.OCR.TesseractCmd == "" {
		return fmt.Errorf("TESSERACT_CMD is required for the tesseract OCR engine")
	}
	return nil
}

// HasKey reports whether credentials (or a host, for ollama) exist for the
// named backend.
func (l LLMConfig) HasKey(name string) bool {
	switch name {
	case "gemini":
		return l.GeminiAPIKey != ""
	case "openai":
		return l.OpenAIAPIKey != ""
	case "claude":
		return l.AnthropicAPIKey != ""
	case "mistral":
		return l.MistralAPIKey != ""
	case "ollama":
		return l.OllamaHost != ""
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
