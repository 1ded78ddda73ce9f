package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/membank/ai/mock"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreWriter_Write(t *testing.T) {
	table := newFakeTable(mock.DefaultDimensions)
	embedder := mock.NewMockEmbedder()
	w, err := NewStoreWriter(table, embedder)
	require.NoError(t, err)

	chunks := []string{"first chunk", "second chunk", "third chunk"}
	metadata := make([]map[string]any, len(chunks))
	for i := range metadata {
		metadata[i] = map[string]any{
			core.MetaFileName: "notes",
			core.MetaDocInfo:  map[string]any{core.MetaFileType: "txt", core.MetaRows: i},
		}
	}

	records, err := w.Write(context.Background(), chunks, metadata)
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.CallCount())
	assert.Equal(t, chunks, embedder.Texts())

	require.Len(t, table.batches, 1)
	require.Len(t, records, 3)
	assert.Equal(t, records, table.batches[0])

	ids := map[string]bool{}
	for i, r := range records {
		assert.Equal(t, chunks[i], r.Text)
		assert.Len(t, r.Vector, mock.DefaultDimensions)
		assert.Equal(t, metadata[i], r.Metadata)
		assert.NotEmpty(t, r.ID)
		ids[r.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestStoreWriter_CopiesMetadata(t *testing.T) {
	table := newFakeTable(mock.DefaultDimensions)
	w, err := NewStoreWriter(table, mock.NewMockEmbedder())
	require.NoError(t, err)

	shared := map[string]any{"file_name": "a"}
	records, err := w.Write(context.Background(), []string{"x", "y"}, []map[string]any{shared, shared})
	require.NoError(t, err)

	records[0].Metadata["file_name"] = "changed"
	assert.Equal(t, "a", shared["file_name"])
	assert.Equal(t, "a", records[1].Metadata["file_name"])
}

func TestStoreWriter_RecordsMatchStoredRecords(t *testing.T) {
	ctx := context.Background()
	table := newSessionTable(t)
	w, err := NewStoreWriter(table, mock.NewMockEmbedder())
	require.NoError(t, err)

	metadata := map[string]any{
		core.MetaFileName:   "reportA",
		core.MetaOtherFiles: []string{"reportA.pdf", "notes.txt"},
		core.MetaDocInfo:    map[string]any{core.MetaFileType: "pdf", core.MetaPagesSize: 3},
		"uploaded_by":       map[string]any{"id": 42},
	}
	written, err := w.Write(ctx, []string{"Intro."}, []map[string]any{metadata})
	require.NoError(t, err)
	require.Len(t, written, 1)

	got, err := table.GetRecord(ctx, written[0].ID)
	require.NoError(t, err)
	assert.Equal(t, written[0].Text, got.Text)
	assert.Equal(t, written[0].Metadata, got.Metadata)

	assert.Equal(t, 3, got.Metadata[core.MetaDocInfo].(map[string]any)[core.MetaPagesSize])
	assert.Equal(t, []string{"reportA.pdf", "notes.txt"}, got.Metadata[core.MetaOtherFiles])
}

func TestStoreWriter_UnencodableMetadata(t *testing.T) {
	table := newFakeTable(mock.DefaultDimensions)
	w, err := NewStoreWriter(table, mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = w.Write(context.Background(), []string{"a"}, []map[string]any{{"bad": func() {}}})
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
	assert.Empty(t, table.batches)
}

func TestStoreWriter_NilMetadata(t *testing.T) {
	table := newFakeTable(mock.DefaultDimensions)
	w, err := NewStoreWriter(table, mock.NewMockEmbedder())
	require.NoError(t, err)

	records, err := w.Write(context.Background(), []string{"only"}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Metadata)
}

func TestStoreWriter_MetadataCountMismatch(t *testing.T) {
	table := newFakeTable(mock.DefaultDimensions)
	embedder := mock.NewMockEmbedder()
	w, err := NewStoreWriter(table, embedder)
	require.NoError(t, err)

	_, err = w.Write(context.Background(), []string{"a", "b"}, []map[string]any{{}})
	assert.ErrorIs(t, err, ErrMetadataCountMismatch)
	assert.Zero(t, embedder.CallCount())
	assert.Empty(t, table.batches)
}

func TestStoreWriter_EmptyChunks(t *testing.T) {
	table := newFakeTable(mock.DefaultDimensions)
	embedder := mock.NewMockEmbedder()
	w, err := NewStoreWriter(table, embedder)
	require.NoError(t, err)

	records, err := w.Write(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, embedder.CallCount())
	assert.Empty(t, table.batches)
}

func TestStoreWriter_EmbeddingErrors(t *testing.T) {
	t.Run("embedder failure", func(t *testing.T) {
		boom := errors.New("embedding service down")
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return nil, boom
		}
		table := newFakeTable(mock.DefaultDimensions)
		w, err := NewStoreWriter(table, embedder)
		require.NoError(t, err)

		_, err = w.Write(context.Background(), []string{"a"}, nil)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, table.batches)
	})

	t.Run("count mismatch", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}
		w, err := NewStoreWriter(newFakeTable(1), embedder)
		require.NoError(t, err)

		_, err = w.Write(context.Background(), []string{"a", "b"}, nil)
		assert.ErrorIs(t, err, ErrEmbeddingCountMismatch)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		table := newFakeTable(4)
		w, err := NewStoreWriter(table, mock.NewMockEmbedder())
		require.NoError(t, err)

		_, err = w.Write(context.Background(), []string{"a"}, nil)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
		assert.Empty(t, table.batches)
	})
}

func TestStoreWriter_TableError(t *testing.T) {
	boom := errors.New("disk full")
	table := newFakeTable(mock.DefaultDimensions)
	table.err = boom
	w, err := NewStoreWriter(table, mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = w.Write(context.Background(), []string{"a"}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestNewStoreWriter_Required(t *testing.T) {
	_, err := NewStoreWriter(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrTableRequired)

	_, err = NewStoreWriter(newFakeTable(1), nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
