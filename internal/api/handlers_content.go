package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/sheet"
)

type generateRequest struct {
	Text  string `json:"text"`
	Topic string `json:"topic"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}
	res := s.deps.Generator.Generate(r.Context(), req.Text, req.Topic)
	code := http.StatusOK
	if !res.Success {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

type excelRequest struct {
	Data            []any             `json:"data"`
	DetailedContent []json.RawMessage `json:"detailed_content"`
	Metadata        map[string]any    `json:"metadata"`
	Filename        string            `json:"filename"`
}

func (s *Server) handleExcel(w http.ResponseWriter, r *http.Request) {
	var req excelRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	rows := sheet.ParseRows(req.Data)
	items := make([]document.Item, 0, len(req.DetailedContent))
	for _, raw := range req.DetailedContent {
		it, err := document.DecodeItem(raw)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		items = append(items, it)
	}
	var meta *sheet.Metadata
	if req.Metadata != nil {
		meta = &sheet.Metadata{Values: req.Metadata}
	}
	data, err := s.deps.Writer.Write(rows, items, meta)
	if err != nil {
		s.log.Error("workbook write failed", "error", err)
		jsonError(w, "failed to write workbook", http.StatusInternalServerError)
		return
	}
	name := sanitizeFilename(req.Filename)
	if req.Filename == "" {
		name = "content.xlsx"
	} else if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		name += ".xlsx"
	}
	writeXLSX(w, name, data)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req excelRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, sheet.Validate(sheet.ParseRows(req.Data)))
}
