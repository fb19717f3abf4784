// Package scratch manages disposable per-image files.
package scratch

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsheet/internal/imaging"
	"github.com/google/uuid"
)

// Prefix marks files owned by this package so the sweeper never touches
// anything else in a shared temp directory.
const Prefix = "docsheet-"

// Area is a directory for scratch files. Every file gets a unique name and
// is removed by the release func returned with it.
type Area struct {
	dir string
	log *slog.Logger
}

func NewArea(dir string, log *slog.Logger) (*Area, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Area{dir: dir, log: log}, nil
}

func (a *Area) Dir() string { return a.dir }

// Write stores data under a fresh name with the given extension.
func (a *Area) Write(data []byte, ext string) (path string, release func(), err error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path = filepath.Join(a.dir, Prefix+uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("create scratch file: %w", err)
	}
	release = a.releaser(path)
	if _, err := f.Write(data); err != nil {
		f.Close()
		release()
		return "", nil, fmt.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("close scratch file: %w", err)
	}
	return path, release, nil
}

// WriteImage encodes img as PNG into a fresh scratch file.
func (a *Area) WriteImage(img image.Image) (path string, release func(), err error) {
	data, err := imaging.PNGBytes(img)
	if err != nil {
		return "", nil, fmt.Errorf("encode scratch image: %w", err)
	}
	return a.Write(data, ".png")
}

func (a *Area) releaser(path string) func() {
	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.log.Warn("remove scratch file", "path", path, "error", err)
		}
	}
}
