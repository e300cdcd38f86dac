package document

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DefaultMaxPages limits how many PDF pages are sent for evaluation
const DefaultMaxPages = 2

// Rasterizer renders PDF documents to JPEG pages using mupdf
type Rasterizer struct {
	maxPages int
	quality  int
	logger   *zap.Logger
}

// NewRasterizer creates a new Rasterizer
func NewRasterizer(maxPages int, logger *zap.Logger) *Rasterizer {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Rasterizer{maxPages: maxPages, quality: 85, logger: logger}
}

// Rasterize returns up to maxPages JPEG images for the PDF in data.
// Pages that fail to render are skipped; an error is returned only when none render.
func (r *Rasterizer) Rasterize(data []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > r.maxPages {
		pageCount = r.maxPages
	}

	var pages [][]byte
	for n := 0; n < pageCount; n++ {
		img, err := doc.Image(n)
		if err != nil {
			r.logger.Warn("Failed to render PDF page", zap.Int("page", n), zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			r.logger.Warn("Failed to encode PDF page", zap.Int("page", n), zap.Error(err))
			continue
		}
		pages = append(pages, buf.Bytes())
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no renderable pages in PDF")
	}
	return pages, nil
}
