// Package app builds the component graph shared by the HTTP server and
// the CLI from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docsheet/internal/api"
	"github.com/dgallion1/docsheet/internal/assemble"
	"github.com/dgallion1/docsheet/internal/config"
	"github.com/dgallion1/docsheet/internal/generate"
	"github.com/dgallion1/docsheet/internal/llm"
	"github.com/dgallion1/docsheet/internal/ocr"
	"github.com/dgallion1/docsheet/internal/pdfdoc"
	"github.com/dgallion1/docsheet/internal/pipeline"
	"github.com/dgallion1/docsheet/internal/scratch"
	"github.com/dgallion1/docsheet/internal/sheet"
	"github.com/dgallion1/docsheet/internal/vision"
)

type App struct {
	Config config.Config
	Log    *slog.Logger

	Stats  *llm.Stats
	Router *llm.Router
	// Vision is nil when no vision-capable backend has credentials.
	Vision llm.VisionCompleter

	Scratch   *scratch.Area
	OCR       *ocr.Reader
	Assembler *assemble.Assembler
	Generator *generate.Generator
	Writer    *sheet.Writer
	Converter *pipeline.Converter

	sweeper *scratch.Sweeper
}

// New wires every component. Missing LLM credentials degrade features
// rather than failing; only an unusable scratch directory is fatal.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Log: log, Stats: llm.NewStats(time.Hour)}

	area, err := scratch.NewArea(cfg.ScratchDir, log)
	if err != nil {
		return nil, fmt.Errorf("scratch area: %w", err)
	}
	a.Scratch = area

	primary := openBackend(ctx, "primary", cfg.LLM.Primary, cfg.LLM, log)
	secondary := openBackend(ctx, "secondary", cfg.LLM.Secondary, cfg.LLM, log)
	limiter := llm.NewLimiter(cfg.LLM.PrimaryCallsPerMinute, cfg.LLM.PrimaryMinInterval.Duration)
	a.Router = llm.NewRouter(primary, secondary, limiter, a.Stats, log.With("component", "llm"))

	if v, err := llm.OpenVision(ctx, cfg.LLM); err == nil {
		a.Vision = llm.Instrument(v, a.Stats)
	} else if !errors.Is(err, llm.ErrNoBackend) {
		log.Warn("vision backend unavailable", "error", err)
	}

	a.OCR = a.newReader()

	classifier := vision.NewClassifier(vision.DefaultLines(), a.OCR, cfg.Images.LineThreshold, log)
	extractor := vision.NewExtractor(a.Vision, a.OCR, vision.ExtractorOptions{
		DescribeImages:       cfg.Images.DescribeImages,
		DiagramTextThreshold: cfg.Images.DiagramTextThreshold,
	}, log)
	a.Assembler = assemble.New(
		pdfdoc.NewTextExtractor(log),
		pdfdoc.NewImageSource(log),
		classifier,
		extractor,
		area,
		assemble.Options{Workers: cfg.Images.Workers, MinSide: cfg.Images.MinSide},
		log,
	)

	g := cfg.Generation
	a.Generator = generate.New(a.Router, generate.Options{
		AnalyzeTimeout:  g.AnalyzeTimeout.Duration,
		QuickTimeout:    g.QuickTimeout.Duration,
		SubtopicTimeout: g.SubtopicTimeout.Duration,
		SubtopicDelay:   g.SubtopicDelay.Duration,
		MaxSubtopics:    g.MaxSubtopics,
	}, log)
	a.Writer = sheet.NewWriter(log)
	a.Converter = pipeline.NewConverter(a.Assembler, a.Generator, a.Writer, log)

	log.Info("components ready",
		"llm", a.Router.Name(),
		"vision", a.visionName(),
		"ocr", a.OCR.Engine(),
		"scratch_dir", area.Dir(),
	)
	return a, nil
}

// openBackend returns nil, not an error, for an unset or unusable backend
// so the router can run on whatever is left.
func openBackend(ctx context.Context, role, name string, cfg config.LLMConfig, log *slog.Logger) llm.Completer {
	if name == "" {
		return nil
	}
	if !cfg.HasKey(name) {
		log.Warn("llm backend has no credentials", "role", role, "backend", name)
		return nil
	}
	c, err := llm.Open(ctx, name, cfg)
	if err != nil {
		log.Warn("llm backend unavailable", "role", role, "backend", name, "error", err)
		return nil
	}
	return c
}

// newReader picks the OCR engine. The vision engine needs a vision
// backend and falls back to tesseract without one.
func (a *App) newReader() *ocr.Reader {
	cfg := a.Config.OCR
	if cfg.Engine == "vision" {
		if a.Vision != nil {
			return ocr.NewReader(ocr.NewVision(a.Vision), a.Scratch, cfg.Language, false, a.Log)
		}
		a.Log.Warn("vision OCR requested without a vision backend, using tesseract")
	}
	cmd := cfg.TesseractCmd
	if cmd == "" {
		cmd = "tesseract"
	}
	return ocr.NewReader(ocr.NewTesseract(cmd), a.Scratch, cfg.Language, true, a.Log)
}

func (a *App) visionName() string {
	if a.Vision == nil {
		return "none"
	}
	return a.Vision.Name()
}

// NewOrchestrator builds the background job runner; the caller starts and
// stops it.
func (a *App) NewOrchestrator() *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(a.Converter, pipeline.OrchestratorOptions{
		Workers:   a.Config.WorkerCount,
		QueueSize: a.Config.MaxQueueSize,
		JobTTL:    a.Config.JobTTL.Duration,
	}, a.Log)
}

// APIDeps exposes the components the HTTP layer needs.
func (a *App) APIDeps(orch *pipeline.Orchestrator) api.Deps {
	deps := api.Deps{
		Orchestrator: orch,
		Extractor:    a.Assembler,
		Generator:    a.Generator,
		Writer:       a.Writer,
		OCR:          a.OCR,
	}
	if a.Router.Available() {
		deps.Stats = a.Router
	}
	return deps
}

// StartSweeper schedules removal of scratch files left by crashed runs.
func (a *App) StartSweeper() error {
	a.sweeper = scratch.NewSweeper(a.Scratch, a.Config.ScratchMaxAge.Duration, a.Log)
	a.sweeper.Sweep(time.Now())
	return a.sweeper.Start(scratch.DefaultSchedule)
}

func (a *App) Close() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
}
