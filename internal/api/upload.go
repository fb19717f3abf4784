package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

func isImage(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// readUpload reads the multipart "file" field. On failure it has already
// written the error response and ok is false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, allowed func(string) bool) (filename string, data []byte, ok bool) {
	limit := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	filename = sanitizeFilename(header.Filename)
	if !allowed(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return "", nil, false
	}

	data, err = io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return "", nil, false
	}
	if int64(len(data)) > limit {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", limit), http.StatusRequestEntityTooLarge)
		return "", nil, false
	}
	return filename, data, true
}

type uploadedFile struct {
	name string
	data []byte
	// err is set when this file alone was rejected.
	err string
}

// readUploads reads every file of a multipart field. Per-file problems
// are recorded on the file; only a malformed form, a missing field or too
// many files fail the request.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request, field string, maxFiles int, allowed func(string) bool) ([]uploadedFile, bool) {
	limit := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*limit+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[field]
	switch {
	case len(headers) == 0:
		jsonError(w, field+" is required", http.StatusBadRequest)
		return nil, false
	case len(headers) > maxFiles:
		jsonError(w, fmt.Sprintf("at most %d files per request", maxFiles), http.StatusBadRequest)
		return nil, false
	}

	files := make([]uploadedFile, len(headers))
	for i, h := range headers {
		f := &files[i]
		f.name = sanitizeFilename(h.Filename)
		if !allowed(f.name) {
			f.err = fmt.Sprintf("unsupported file type: %s", filepath.Ext(f.name))
			continue
		}
		data, err := readPart(h, limit)
		if err != nil {
			f.err = err.Error()
			continue
		}
		f.data = data
	}
	return files, true
}

func readPart(h *multipart.FileHeader, limit int64) ([]byte, error) {
	file, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds max size (%d bytes)", limit)
	}
	return data, nil
}

// decodeBody reads a JSON request body bounded by the upload limit.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
