// Package assemble turns a PDF into a document.Bundle: page text, typed
// items from embedded images, and an inferred outline.
package assemble

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docsheet/internal/document"
	"github.com/dgallion1/docsheet/internal/imaging"
	"github.com/dgallion1/docsheet/internal/pdfdoc"
	"github.com/dgallion1/docsheet/internal/scratch"
	"github.com/dgallion1/docsheet/internal/structure"
	"github.com/dgallion1/docsheet/internal/vision"
)

type TextSource interface {
	Extract(data []byte) (*pdfdoc.TextResult, error)
}

type ImageFinder interface {
	Discover(data []byte) ([]pdfdoc.RawImage, error)
}

type Classifier interface {
	Classify(ctx context.Context, img image.Image, path string) document.ContentType
}

type ContentExtractor interface {
	Extract(ctx context.Context, in vision.Input, ct document.ContentType) vision.Outcome
}

type Options struct {
	// Workers bounds concurrent image processing.
	Workers int
	// MinSide drops images smaller than this on either axis.
	MinSide int
}

type Assembler struct {
	text     TextSource
	images   ImageFinder
	classify Classifier
	extract  ContentExtractor
	area     *scratch.Area
	opts     Options
	log      *slog.Logger
}

func New(text TextSource, images ImageFinder, classifier Classifier, extractor ContentExtractor, area *scratch.Area, opts Options, log *slog.Logger) *Assembler {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		text:     text,
		images:   images,
		classify: classifier,
		extract:  extractor,
		area:     area,
		opts:     opts,
		log:      log,
	}
}

// Assemble extracts everything from one PDF. It fails only when the PDF
// cannot be opened for text or for images, or ctx ends.
func (a *Assembler) Assemble(ctx context.Context, data []byte) (*document.Bundle, error) {
	start := time.Now()

	var (
		text   *pdfdoc.TextResult
		images []pdfdoc.RawImage
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := a.text.Extract(data)
		if err != nil {
			return fmt.Errorf("extract text: %w", err)
		}
		text = res
		return nil
	})
	g.Go(func() error {
		res, err := a.images.Discover(data)
		if err != nil {
			return fmt.Errorf("discover images: %w", err)
		}
		images = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcomes := a.processImages(ctx, images)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle := &document.Bundle{
		Pages:      text.Pages,
		TotalPages: text.TotalPages,
		Items:      []document.Item{},
		Structure:  structure.Infer(text.Text),
	}
	lines := make([]string, 0, len(outcomes))
	for i, out := range outcomes {
		img := images[i]
		if !out.OK() {
			a.log.Warn("image skipped", "page", img.Page, "image", img.Index, "type", out.Type, "reason", out.Reason)
			bundle.Skipped = append(bundle.Skipped, document.SkippedImage{Page: img.Page, Index: img.Index, Reason: out.Reason})
			continue
		}
		bundle.Items = append(bundle.Items, out.Item)
		bundle.Breakdown.Add(out.Type)
		lines = append(lines, out.Item.Line())
	}

	bundle.MergedText = text.Text
	if len(lines) > 0 {
		if bundle.MergedText != "" {
			bundle.MergedText += "\n\n"
		}
		bundle.MergedText += strings.Join(lines, "\n")
	}

	a.log.Info("document assembled",
		"pages", bundle.TotalPages,
		"images", len(images),
		"items", len(bundle.Items),
		"skipped", len(bundle.Skipped),
		"chapters", len(bundle.Structure.Chapters),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return bundle, nil
}

// Image classifies and extracts one standalone image as if it sat on
// page 1 of a document.
func (a *Assembler) Image(ctx context.Context, data []byte, fileType string) vision.Outcome {
	return a.processImage(ctx, pdfdoc.RawImage{Page: 1, FileType: fileType, Data: data})
}

// processImages returns one outcome per image, in input order.
func (a *Assembler) processImages(ctx context.Context, images []pdfdoc.RawImage) []vision.Outcome {
	outcomes := make([]vision.Outcome, len(images))
	var g errgroup.Group
	g.SetLimit(a.opts.Workers)
	for i, img := range images {
		g.Go(func() error {
			outcomes[i] = a.processImage(ctx, img)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (a *Assembler) processImage(ctx context.Context, raw pdfdoc.RawImage) (out vision.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = vision.Skip(document.General, raw.Page, "panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return vision.Skip(document.General, raw.Page, "%v", err)
	}

	img, err := raw.Decode(a.opts.MinSide)
	if err != nil {
		return vision.Skip(document.General, raw.Page, "decode: %v", err)
	}
	png, err := imaging.PNGBytes(img)
	if err != nil {
		return vision.Skip(document.General, raw.Page, "encode: %v", err)
	}
	path, release, err := a.area.Write(png, ".png")
	if err != nil {
		return vision.Skip(document.General, raw.Page, "scratch: %v", err)
	}
	defer release()

	ct := a.classify.Classify(ctx, img, path)
	a.log.Debug("image classified", "page", raw.Page, "image", raw.Index, "type", ct)
	return a.extract.Extract(ctx, vision.Input{Page: raw.Page, Path: path, Data: png, MIME: "image/png"}, ct)
}
