package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/llm"
	"github.com/dgallion1/docsheet/internal/pipeline"
)

type extractResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	*document.Bundle
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r, pipeline.IsPDF)
	if !ok {
		return
	}
	bundle, err := s.deps.Extractor.Assemble(r.Context(), data)
	if err != nil {
		s.log.Error("pdf extraction failed", "filename", filename, "error", err)
		jsonError(w, "cannot read PDF: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{Success: true, Filename: filename, Bundle: bundle})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r, pipeline.Supported)
	if !ok {
		return
	}
	out, err := s.deps.Orchestrator.Converter().Convert(r.Context(), pipeline.Input{
		Filename:        filename,
		Data:            data,
		IncludeMetadata: wantMetadata(r),
	})
	if err != nil {
		s.log.Error("conversion failed", "filename", filename, "error", err)
		jsonError(w, err.Error(), convertStatus(err))
		return
	}
	if len(out.Degraded) > 0 {
		w.Header().Set("X-Docsheet-Degraded", strings.Join(out.Degraded, "; "))
	}
	writeXLSX(w, out.Filename, out.Workbook)
}

type rowsResponse struct {
	Success          bool                  `json:"success"`
	Data             []document.ContentRow `json:"data"`
	TotalItems       int                   `json:"total_items"`
	OriginalFilename string                `json:"original_filename"`
	Degraded         []string              `json:"degraded,omitempty"`
}

// handleConvertRows runs a conversion but returns the generated rows as
// JSON instead of a workbook.
func (s *Server) handleConvertRows(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r, pipeline.Supported)
	if !ok {
		return
	}
	out, err := s.deps.Orchestrator.Converter().Convert(r.Context(), pipeline.Input{
		Filename: filename,
		Data:     data,
		RowsOnly: true,
	})
	if err != nil {
		s.log.Error("content generation failed", "filename", filename, "error", err)
		jsonError(w, err.Error(), convertStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{
		Success:          true,
		Data:             out.Rows,
		TotalItems:       len(out.Rows),
		OriginalFilename: filename,
		Degraded:         out.Degraded,
	})
}

type analyzeStats struct {
	TotalPages int `json:"total_pages"`
	ImageCount int `json:"image_count"`
	TextLength int `json:"text_length"`
	Chapters   int `json:"chapters"`
	Sections   int `json:"sections"`
}

type analyzeResponse struct {
	Success     bool             `json:"success"`
	Filename    string           `json:"original_filename"`
	Analysis    string           `json:"analysis"`
	Structure   document.Outline `json:"structure"`
	Stats       analyzeStats     `json:"stats"`
	ProcessedAt time.Time        `json:"processed_at"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r, pipeline.IsPDF)
	if !ok {
		return
	}
	bundle, err := s.deps.Extractor.Assemble(r.Context(), data)
	if err != nil {
		s.log.Error("pdf extraction failed", "filename", filename, "error", err)
		jsonError(w, "cannot read PDF: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if strings.TrimSpace(bundle.MergedText) == "" {
		jsonError(w, pipeline.ErrNoContent.Error(), http.StatusUnprocessableEntity)
		return
	}
	analysis, err := s.deps.Generator.Analyze(r.Context(), bundle.MergedText)
	if err != nil {
		s.log.Error("content analysis failed", "filename", filename, "error", err)
		code := http.StatusBadGateway
		if errors.Is(err, llm.ErrNoBackend) {
			code = http.StatusServiceUnavailable
		}
		jsonError(w, "content analysis failed: "+err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:   true,
		Filename:  filename,
		Analysis:  analysis,
		Structure: bundle.Structure,
		Stats: analyzeStats{
			TotalPages: bundle.TotalPages,
			ImageCount: len(bundle.Items) + len(bundle.Skipped),
			TextLength: utf8.RuneCountInString(bundle.MergedText),
			Chapters:   len(bundle.Structure.Chapters),
			Sections:   len(bundle.Structure.Sections),
		},
		ProcessedAt: time.Now().UTC(),
	})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r, pipeline.Supported)
	if !ok {
		return
	}
	job, err := s.deps.Orchestrator.Submit(filename, data, wantMetadata(r))
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/v1/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.deps.Orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.deps.Orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	name, data, ok := job.Result()
	if !ok {
		snap := job.Snapshot()
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"status":  snap.Status,
			"error":   "job has no result",
			"errors":  snap.Progress.Errors,
		})
		return
	}
	writeXLSX(w, name, data)
}

func wantMetadata(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("metadata"))
	return err == nil && v
}

func convertStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrUnreadable), errors.Is(err, pipeline.ErrNoContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrGenerationFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
