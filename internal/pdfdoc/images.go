package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sort"

	"github.com/dgallion1/docsheet/internal/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// RawImage is an embedded image as stored in the PDF (already unfiltered
// into a standard container by pdfcpu).
type RawImage struct {
	Page     int    // 1-based page number
	Index    int    // discovery order within the page
	ObjNr    int    // PDF object number
	FileType string // png, jpg, tif, ...
	Data     []byte
}

// ImageSource discovers embedded raster images.
type ImageSource struct {
	log *slog.Logger
}

func NewImageSource(log *slog.Logger) *ImageSource {
	if log == nil {
		log = slog.Default()
	}
	return &ImageSource{log: log}
}

// Discover returns all embedded images in page order, and within a page in
// object order. Failure to read the document is returned; an unreadable
// single image is logged and left out.
func (s *ImageSource) Discover(data []byte) (images []RawImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			images, err = nil, fmt.Errorf("extract images: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	for _, byObj := range pages {
		objNrs := make([]int, 0, len(byObj))
		for nr := range byObj {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		for _, nr := range objNrs {
			img := byObj[nr]
			if img.Reader == nil {
				continue
			}
			raw, err := io.ReadAll(img)
			if err != nil {
				s.log.Warn("read embedded image failed", "page", img.PageNr, "obj", nr, "error", err)
				continue
			}
			images = append(images, RawImage{
				Page:     img.PageNr,
				ObjNr:    nr,
				FileType: img.FileType,
				Data:     raw,
			})
		}
	}

	sort.SliceStable(images, func(i, j int) bool { return images[i].Page < images[j].Page })
	index := map[int]int{}
	for i := range images {
		images[i].Index = index[images[i].Page]
		index[images[i].Page]++
	}
	return images, nil
}

// Decode normalizes the image to RGBA. Images smaller than minSide on
// either axis are rejected.
func (r RawImage) Decode(minSide int) (*image.RGBA, error) {
	cfg, _, err := imaging.DecodeConfig(r.Data)
	if err != nil {
		return nil, fmt.Errorf("unsupported image format %q: %w", r.FileType, err)
	}
	if cfg.Width < minSide || cfg.Height < minSide {
		return nil, fmt.Errorf("image too small (%dx%d)", cfg.Width, cfg.Height)
	}
	img, _, err := imaging.Decode(r.Data)
	if err != nil {
		return nil, err
	}
	return imaging.ToRGBA(img), nil
}
