package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/membank/core"
)

// placeholderIngestor stands in for categories without extraction. Every
// call fails with ErrNotSupported.
type placeholderIngestor struct {
	category core.Category
}

// NewImageIngestor returns the image ingestor. OCR is not implemented.
func NewImageIngestor() Ingestor {
	return &placeholderIngestor{category: core.CategoryImage}
}

// NewSoundIngestor returns the sound ingestor. Transcription is not implemented.
func NewSoundIngestor() Ingestor {
	return &placeholderIngestor{category: core.CategorySound}
}

func (p *placeholderIngestor) Category() core.Category {
	return p.category
}

func (p *placeholderIngestor) Extract(context.Context, string) (*Extraction, error) {
	return nil, fmt.Errorf("%s ingestion: %w", p.category, ErrNotSupported)
}
