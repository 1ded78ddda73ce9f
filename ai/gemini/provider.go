package gemini

import (
	"context"
	"log/slog"

	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/ai/semantic"
)

// Provider implements ai.AIProvider on top of the Gemini API. The semantic
// chunker embeds sentences through the same client.
type Provider struct {
	embedder *Embedder
	chunker  ai.Chunker
	logger   *slog.Logger
}

// NewProvider creates a Gemini-backed provider. config.APIKey must be set.
//
// Returns ai.AIProvider interface to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(ctx, config)
	if err != nil {
		return nil, err
	}

	chunker, err := semantic.NewChunker(semantic.Bridge(embedder), semantic.OptionsFromConfig(config)...)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	return &Provider{
		embedder: embedder,
		chunker:  chunker,
		logger:   slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Chunker returns the semantic chunker.
func (p *Provider) Chunker() ai.Chunker {
	return p.chunker
}

// Close releases the Gemini client.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return p.embedder.Close()
}
