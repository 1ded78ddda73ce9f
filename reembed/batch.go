package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
)

// BatchProcessor handles embedding generation for batches of records.
type BatchProcessor struct {
	table          storage.Table
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(table storage.Table, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		table:          table,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of records and updates them in the table.
// Vectors are normalized after embedding to ensure compatibility with cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.Record) error {
	if len(records) == 0 {
		return nil
	}

	// Extract text content
	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(records), len(embeddings))
	}

	// Normalize vectors and key them by record
	vectors := make(map[string][]float32, len(records))
	for i, record := range records {
		vectors[record.ID] = NormalizeVector(embeddings[i])
	}

	if err := bp.table.UpdateVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to update records: %w", err)
	}

	return nil
}
