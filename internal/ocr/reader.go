package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/docsheet/internal/imaging"
	"github.com/dgallion1/docsheet/internal/scratch"
)

// Reader runs an Engine with the preprocessing and pass selection used for
// embedded images.
type Reader struct {
	engine   Engine
	area     *scratch.Area
	language string
	// bestOf enables the multi-pass strategy; engines billed per call run
	// a single pass.
	bestOf bool
	log    *slog.Logger
}

func NewReader(engine Engine, area *scratch.Area, language string, bestOf bool, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{engine: engine, area: area, language: language, bestOf: bestOf, log: log}
}

func (r *Reader) Engine() string { return r.engine.Name() }

// Quick is a single low-fidelity pass used for classification.
func (r *Reader) Quick(ctx context.Context, path string) (string, error) {
	out, err := r.engine.Recognize(ctx, path, Options{Language: r.language, PageSegMode: PSMBlock})
	if err != nil {
		return "", err
	}
	return Clean(out), nil
}

// Text returns the best transcription of the image at path. With bestOf
// set it tries a binarized copy at two segmentation modes and the raw
// image, keeping the longest cleaned result.
func (r *Reader) Text(ctx context.Context, path string) (string, error) {
	if !r.bestOf {
		out, err := r.engine.Recognize(ctx, path, Options{Language: r.language, PageSegMode: PSMAuto})
		if err != nil {
			return "", err
		}
		return Clean(out), nil
	}

	type pass struct {
		path string
		psm  int
	}
	passes := []pass{{path, PSMBlock}}
	if binPath, release, err := r.binarized(path); err != nil {
		r.log.Warn("ocr preprocessing failed, using raw image", "error", err)
	} else {
		defer release()
		passes = []pass{{binPath, PSMBlock}, {binPath, PSMAuto}, {path, PSMBlock}}
	}

	var best string
	var lastErr error
	for _, p := range passes {
		out, err := r.engine.Recognize(ctx, p.path, Options{Language: r.language, PageSegMode: p.psm})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if cleaned := Clean(out); len(cleaned) > len(best) {
			best = cleaned
		}
	}
	if best == "" && lastErr != nil {
		return "", lastErr
	}
	return best, nil
}

func (r *Reader) binarized(path string) (string, func(), error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read image: %w", err)
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return "", nil, err
	}
	g := imaging.MedianBlur3(imaging.Gray(img))
	return r.area.WriteImage(imaging.Binarize(g, imaging.Otsu(g)))
}

// Confidence scores an uploaded image. The bytes go through the scratch
// area and are binarized first when preprocessing succeeds.
func (r *Reader) Confidence(ctx context.Context, data []byte, ext string) (Confidence, error) {
	sc, ok := r.engine.(Scorer)
	if !ok {
		return Confidence{}, fmt.Errorf("%s: %w", r.engine.Name(), ErrNoConfidence)
	}
	if r.area == nil {
		return Confidence{}, errors.New("no scratch area")
	}
	path, release, err := r.area.Write(data, ext)
	if err != nil {
		return Confidence{}, err
	}
	defer release()

	if binPath, releaseBin, err := r.binarized(path); err != nil {
		r.log.Warn("ocr preprocessing failed, scoring raw image", "error", err)
	} else {
		defer releaseBin()
		path = binPath
	}
	return sc.Score(ctx, path, Options{Language: r.language, PageSegMode: PSMAuto})
}
