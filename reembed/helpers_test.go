package reembed

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
	"github.com/poiesic/membank/storage/badger"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.embedTextFunc != nil {
		return m.embedTextFunc(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	// Default: return unnormalized vectors for each text
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

// setupTestTable returns an empty in-memory table with 3-dimensional vectors.
func setupTestTable(t *testing.T) storage.Table {
	t.Helper()
	store, err := badger.NewMemoryTableStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	table, err := store.CreateTable(context.Background(), "session", 3)
	require.NoError(t, err)
	return table
}

// addRecords stores n records with placeholder vectors and returns them.
func addRecords(t *testing.T, table storage.Table, n int) []*core.Record {
	t.Helper()
	records := make([]*core.Record, n)
	for i := range records {
		records[i] = &core.Record{
			ID:     fmt.Sprintf("rec-%02d", i),
			Text:   fmt.Sprintf("test %d", i),
			Vector: []float32{0, 0, 1},
		}
	}
	require.NoError(t, table.AddRecords(context.Background(), records...))
	return records
}
