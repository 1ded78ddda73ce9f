package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
)

// StoreWriter embeds chunks and appends them to a table as records.
type StoreWriter struct {
	table    storage.TableWriter
	embedder ai.Embedder
	newID    func() string
	logger   *slog.Logger
}

// NewStoreWriter creates a store writer for table.
func NewStoreWriter(table storage.TableWriter, embedder ai.Embedder) (*StoreWriter, error) {
	return newStoreWriter(table, embedder, nil)
}

func newStoreWriter(table storage.TableWriter, embedder ai.Embedder, logger *slog.Logger) (*StoreWriter, error) {
	if table == nil {
		return nil, ErrTableRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreWriter{
		table:    table,
		embedder: embedder,
		newID:    uuid.NewString,
		logger:   logger.With("stage", "store"),
	}, nil
}

// Write embeds chunks in a single call and appends one record per chunk in a
// single batch. metadata may be nil; otherwise it must hold one map per
// chunk. Each record receives its own copy of its metadata map, in the form
// the table returns it on read.
func (w *StoreWriter) Write(ctx context.Context, chunks []string, metadata []map[string]any) ([]*core.Record, error) {
	if metadata != nil && len(metadata) != len(chunks) {
		return nil, fmt.Errorf("%w: %d metadata for %d chunks", ErrMetadataCountMismatch, len(metadata), len(chunks))
	}
	if len(chunks) == 0 {
		return []*core.Record{}, nil
	}

	w.logger.Debug("generating embeddings for chunks", "chunks", len(chunks))
	vectors, err := w.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		w.logger.Error("error generating embeddings", "err", err)
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingCountMismatch, len(chunks), len(vectors))
	}

	dims := w.table.Info().Dimensions
	records := make([]*core.Record, len(chunks))
	for i, chunk := range chunks {
		if dims > 0 && len(vectors[i]) != dims {
			return nil, fmt.Errorf("%w: chunk %d: expected %d, got %d",
				core.ErrDimensionMismatch, i, dims, len(vectors[i]))
		}
		var meta map[string]any
		if metadata != nil {
			if meta, err = storage.NormalizeMetadata(metadata[i]); err != nil {
				return nil, fmt.Errorf("chunk %d metadata: %w", i, err)
			}
		}
		records[i] = &core.Record{
			ID:       w.newID(),
			Vector:   vectors[i],
			Text:     chunk,
			Metadata: meta,
		}
	}

	if err := w.table.AddRecords(ctx, records...); err != nil {
		w.logger.Error("error writing records", "records", len(records), "err", err)
		return nil, err
	}
	w.logger.Debug("wrote records", "records", len(records), "table", w.table.Info().Name)
	return records, nil
}
