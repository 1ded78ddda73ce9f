package membank

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/ai/mock"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/ingestion"
	"github.com/poiesic/membank/reembed"
	"github.com/poiesic/membank/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestBank opens a bank backed by a mock provider whose dimensions are probed.
func openTestBank(t *testing.T, baseDir string) (*Bank, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider().(*mock.MockProvider)
	bank, err := Open(baseDir, "clients",
		WithProvider(provider),
		WithAIConfig(ai.NewConfig(ai.WithDimensions(0))),
	)
	require.NoError(t, err)
	return bank, provider
}

func TestOpen(t *testing.T) {
	t.Run("create new bank", func(t *testing.T) {
		baseDir := filepath.Join(t.TempDir(), "banks")
		bank, _ := openTestBank(t, baseDir)
		defer bank.Close()

		assert.Equal(t, "clients", bank.Name())
		assert.NotNil(t, bank.Store())
		assert.NotNil(t, bank.Provider())
		assert.DirExists(t, filepath.Join(baseDir, "clients"))
		assert.FileExists(t, filepath.Join(baseDir, "clients.lock"))
	})

	t.Run("error with invalid bank name", func(t *testing.T) {
		bank, err := Open(t.TempDir(), "../escape", WithProvider(mock.NewMockProvider()))
		assert.ErrorIs(t, err, core.ErrInvalidTableName)
		assert.Nil(t, bank)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to open a bank beneath a file instead of a directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		bank, err := Open(tmpFile, "clients", WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, bank)
	})

	t.Run("error with invalid ai config", func(t *testing.T) {
		baseDir := t.TempDir()
		bank, err := Open(baseDir, "clients", WithAIConfig(ai.NewConfig(ai.WithProvider("acme"))))
		assert.Error(t, err)
		assert.Nil(t, bank)

		// Store and lock are released on the failure path
		reopened, _ := openTestBank(t, baseDir)
		require.NoError(t, reopened.Close())
	})
}

func TestOpen_Locked(t *testing.T) {
	baseDir := t.TempDir()
	first, _ := openTestBank(t, baseDir)

	second, err := Open(baseDir, "clients", WithProvider(mock.NewMockProvider()))
	assert.ErrorIs(t, err, ErrBankLocked)
	assert.Nil(t, second)

	require.NoError(t, first.Close())

	// The lock is released on Close
	reopened, _ := openTestBank(t, baseDir)
	require.NoError(t, reopened.Close())
}

func TestBank_Close(t *testing.T) {
	bank, provider := openTestBank(t, t.TempDir())

	err := bank.Close()
	assert.NoError(t, err)
	assert.True(t, provider.Closed(), "provider should be closed")
}

func TestBank_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	bank, provider := openTestBank(t, t.TempDir())
	defer bank.Close()

	uploads := t.TempDir()
	notes := filepath.Join(uploads, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("Alpha paragraph.\n\nBeta paragraph."), 0644))

	orchestrator, err := bank.NewSession(ctx, "session1")
	require.NoError(t, err)

	report, err := orchestrator.Run(ctx, core.Manifest{
		{Category: string(core.CategoryText), Files: []string{notes}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 1, report.Count(ingestion.StatusIngested))
	assert.NoFileExists(t, notes, "source file should be deleted")

	sessions, err := bank.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "session1", sessions[0].Name)
	assert.Equal(t, mock.DefaultDimensions, sessions[0].Dimensions, "dimensions should be probed")

	t.Run("search", func(t *testing.T) {
		searcher, err := bank.Searcher(ctx, "session1")
		require.NoError(t, err)

		results, err := searcher.FindSimilar(ctx, "Alpha paragraph.", 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "Alpha paragraph.", results[0].Record.Text)
	})

	t.Run("reembed", func(t *testing.T) {
		var buf bytes.Buffer
		reembedder, err := bank.Reembedder(ctx, "session1", &reembed.Config{
			BatchSize:      1,
			ReportInterval: 1,
			MaxRetries:     1,
		}, &buf)
		require.NoError(t, err)
		require.NoError(t, reembedder.Run(ctx))
		assert.Contains(t, buf.String(), "2/2")
	})

	t.Run("new session overwrites table", func(t *testing.T) {
		_, err := bank.NewSession(ctx, "session1")
		require.NoError(t, err)

		table, err := bank.Store().OpenTable(ctx, "session1")
		require.NoError(t, err)
		count, err := table.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("drop session", func(t *testing.T) {
		require.NoError(t, bank.DropSession(ctx, "session1"))
		_, err := bank.Searcher(ctx, "session1")
		assert.ErrorIs(t, err, storage.ErrTableNotFound)
	})

	assert.Equal(t, 1, provider.GetMockChunker().CallCount())
}

func TestBank_SessionOptions(t *testing.T) {
	ctx := context.Background()
	bank, _ := openTestBank(t, t.TempDir())
	defer bank.Close()

	uploads := t.TempDir()
	photo := filepath.Join(uploads, "photo.png")
	require.NoError(t, os.WriteFile(photo, []byte{0x89, 'P', 'N', 'G'}, 0644))

	orchestrator, err := bank.NewSession(ctx, "session2", ingestion.WithDeletePolicy(ingestion.DeleteNever))
	require.NoError(t, err)

	report, err := orchestrator.Run(ctx, core.Manifest{
		{Category: string(core.CategoryImage), Files: []string{photo}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(ingestion.StatusSkipped))
	assert.FileExists(t, photo, "file should be kept with DeleteNever")
}

func TestNewProvider(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		provider, err := NewProvider(context.Background(), ai.DefaultConfig())
		require.NoError(t, err)
		require.NotNil(t, provider)
		assert.NotNil(t, provider.Embedder())
		assert.NotNil(t, provider.Chunker())
		assert.NoError(t, provider.Close())
	})

	t.Run("gemini requires api key", func(t *testing.T) {
		_, err := NewProvider(context.Background(), ai.NewConfig(ai.WithProvider(ai.ProviderGemini)))
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewProvider(context.Background(), ai.NewConfig(ai.WithProvider("acme")))
		assert.Error(t, err)
	})
}
