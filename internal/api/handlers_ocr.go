package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/ocr"
)

const (
	maxBatchFiles = 10
	batchWorkers  = 4
)

type ocrResult struct {
	Success     bool                 `json:"success"`
	Filename    string               `json:"filename,omitempty"`
	ContentType document.ContentType `json:"content_type,omitempty"`
	Page        int                  `json:"page,omitempty"`
	Item        document.Item        `json:"item,omitempty"`
	Error       string               `json:"error,omitempty"`
}

func (s *Server) imageResult(ctx context.Context, filename string, data []byte) ocrResult {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	out := s.deps.Extractor.Image(ctx, data, ext)
	res := ocrResult{Success: out.OK(), Filename: filename, ContentType: out.Type, Page: out.Page}
	if out.OK() {
		res.Item = out.Item
	} else {
		res.Error = out.Reason
	}
	return res
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r, isImage)
	if !ok {
		return
	}
	res := s.imageResult(r.Context(), filename, data)
	code := http.StatusOK
	if !res.Success {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, res)
}

type batchResponse struct {
	Results   []ocrResult `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// handleOCRBatch processes up to maxBatchFiles images from the "files"
// field. A bad file fails alone; the response is 200 unless the form
// itself is rejected.
func (s *Server) handleOCRBatch(w http.ResponseWriter, r *http.Request) {
	files, ok := s.readUploads(w, r, "files", maxBatchFiles, isImage)
	if !ok {
		return
	}
	results := make([]ocrResult, len(files))
	var g errgroup.Group
	g.SetLimit(batchWorkers)
	for i, f := range files {
		if f.err != "" {
			results[i] = ocrResult{Filename: f.name, Error: f.err}
			continue
		}
		g.Go(func() error {
			results[i] = s.imageResult(r.Context(), f.name, f.data)
			return nil
		})
	}
	_ = g.Wait()

	resp := batchResponse{Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	s.log.Info("ocr batch processed", "files", len(results), "failed", resp.Failed)
	writeJSON(w, http.StatusOK, resp)
}

type confidenceResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	ocr.Confidence
}

func (s *Server) handleOCRConfidence(w http.ResponseWriter, r *http.Request) {
	if s.deps.OCR == nil {
		jsonError(w, "OCR is not configured", http.StatusServiceUnavailable)
		return
	}
	filename, data, ok := s.readUpload(w, r, isImage)
	if !ok {
		return
	}
	c, err := s.deps.OCR.Confidence(r.Context(), data, filepath.Ext(filename))
	if err != nil {
		code := http.StatusUnprocessableEntity
		if errors.Is(err, ocr.ErrNoConfidence) {
			code = http.StatusNotImplemented
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, confidenceResponse{Success: true, Filename: filename, Confidence: c})
}
