// Package api exposes conversion, extraction, generation and export over
// HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docsheet/internal/config"
	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/generate"
	"github.com/dgallion1/docsheet/internal/llm"
	"github.com/dgallion1/docsheet/internal/ocr"
	"github.com/dgallion1/docsheet/internal/pipeline"
	"github.com/dgallion1/docsheet/internal/sheet"
	"github.com/dgallion1/docsheet/internal/vision"
)

// Extractor assembles PDFs and processes standalone images.
type Extractor interface {
	Assemble(ctx context.Context, data []byte) (*document.Bundle, error)
	Image(ctx context.Context, data []byte, fileType string) vision.Outcome
}

type TextGenerator interface {
	Generate(ctx context.Context, text, topic string) generate.Result
	Analyze(ctx context.Context, text string) (string, error)
}

// ConfidenceScorer reports OCR confidence for an uploaded image.
type ConfidenceScorer interface {
	Confidence(ctx context.Context, data []byte, ext string) (ocr.Confidence, error)
}

// StatsSource reports LLM usage; *llm.Router satisfies it.
type StatsSource interface {
	Name() string
	Snapshot() llm.StatsSnapshot
}

type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Extractor    Extractor
	Generator    TextGenerator
	Writer       *sheet.Writer
	OCR          ConfidenceScorer
	// Stats is nil when no LLM backend is configured.
	Stats StatsSource
}

// Server is the HTTP API server for docsheet.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{deps: deps, log: log, cfg: cfg}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/pdf/extract", s.handleExtract)
			r.Post("/pdf/analyze", s.handleAnalyze)
			r.Post("/convert", s.handleConvert)
			r.Post("/convert/rows", s.handleConvertRows)

			r.Post("/jobs", s.handleSubmitJob)
			r.Get("/jobs/{jobID}", s.handleJobStatus)
			r.Get("/jobs/{jobID}/result", s.handleJobResult)

			r.Post("/generate", s.handleGenerate)
			r.Post("/ocr", s.handleOCR)
			r.Post("/ocr/batch", s.handleOCRBatch)
			r.Post("/ocr/confidence", s.handleOCRConfidence)

			r.Post("/excel", s.handleExcel)
			r.Post("/excel/validate", s.handleValidate)
		})
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if s.deps.Orchestrator != nil {
		depth = s.deps.Orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"llm":         s.deps.Stats != nil,
		"queue_depth": depth,
	})
}
