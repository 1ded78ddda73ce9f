package ingestion

import (
	"context"
	"os"
	"strings"

	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/core"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// TextIngestor reads plain text, JSON and CSV files and chunks their content.
// CSV rows are rendered as "column: value" lines, one block per row.
type TextIngestor struct {
	chunker ai.Chunker
}

var _ Ingestor = (*TextIngestor)(nil)

// NewTextIngestor creates a text ingestor.
func NewTextIngestor(chunker ai.Chunker) *TextIngestor {
	return &TextIngestor{chunker: chunker}
}

func (t *TextIngestor) Category() core.Category {
	return core.CategoryText
}

func (t *TextIngestor) Extract(ctx context.Context, path string) (*Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ext := core.Extension(path)
	var docs []schema.Document
	if ext == "csv" {
		docs, err = documentloaders.NewCSV(f).Load(ctx)
	} else {
		docs, err = documentloaders.NewText(f).Load(ctx)
	}
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = doc.PageContent
	}

	docInfo := map[string]any{core.MetaFileType: ext}
	if ext == "csv" {
		docInfo[core.MetaRows] = len(docs)
	}
	return chunkText(ctx, t.chunker, path, strings.Join(parts, "\n\n"), docInfo)
}
