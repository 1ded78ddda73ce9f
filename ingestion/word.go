package ingestion

import (
	"context"
	"fmt"
	"io"
	"os"

	"code.sajari.com/docconv"
	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/core"
)

var wordMimeTypes = map[string]string{
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type convertFunc func(r io.Reader, mimeType string) (string, error)

// WordIngestor extracts text from .doc and .docx files with docconv.
// Legacy .doc files need the antiword binary on PATH.
type WordIngestor struct {
	chunker ai.Chunker
	convert convertFunc
}

var _ Ingestor = (*WordIngestor)(nil)

// NewWordIngestor creates a Word ingestor.
func NewWordIngestor(chunker ai.Chunker) *WordIngestor {
	return &WordIngestor{chunker: chunker, convert: docconvConvert}
}

func docconvConvert(r io.Reader, mimeType string) (string, error) {
	res, err := docconv.Convert(r, mimeType, false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

func (w *WordIngestor) Category() core.Category {
	return core.CategoryWord
}

func (w *WordIngestor) Extract(ctx context.Context, path string) (*Extraction, error) {
	ext := core.Extension(path)
	mimeType, ok := wordMimeTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: .%s", ErrNotSupported, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text, err := w.convert(f, mimeType)
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}

	return chunkText(ctx, w.chunker, path, text, map[string]any{
		core.MetaFileType: "word",
	})
}
