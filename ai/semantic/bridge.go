package semantic

import (
	"context"

	"github.com/poiesic/membank/ai"
	"github.com/tmc/langchaingo/embeddings"
)

// bridge exposes an ai.Embedder through the langchaingo embeddings.Embedder
// interface so any provider can drive the chunker.
type bridge struct {
	embedder ai.Embedder
}

var _ embeddings.Embedder = (*bridge)(nil)

// Bridge adapts an ai.Embedder to embeddings.Embedder.
func Bridge(embedder ai.Embedder) embeddings.Embedder {
	return &bridge{embedder: embedder}
}

func (b *bridge) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return b.embedder.EmbedTexts(ctx, texts)
}

func (b *bridge) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return b.embedder.EmbedText(ctx, text)
}
