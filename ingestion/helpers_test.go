package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/membank/core"
	"github.com/stretchr/testify/require"
)

// fakeTable implements storage.TableWriter and records every batch.
type fakeTable struct {
	info    core.TableInfo
	batches [][]*core.Record
	err     error
}

func newFakeTable(dims int) *fakeTable {
	return &fakeTable{info: core.TableInfo{Name: "session", Dimensions: dims}}
}

func (f *fakeTable) Info() core.TableInfo {
	return f.info
}

func (f *fakeTable) AddRecords(_ context.Context, records ...*core.Record) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, records)
	return nil
}

// fakePreprocessor returns fixed text and page count.
type fakePreprocessor struct {
	text        string
	pages       int
	err         error
	paths       []string
	credentials []string
}

func (f *fakePreprocessor) Preprocess(_ context.Context, path, credentials string) (string, int, error) {
	f.paths = append(f.paths, path)
	f.credentials = append(f.credentials, credentials)
	if f.err != nil {
		return "", 0, f.err
	}
	return f.text, f.pages, nil
}

// countingIngestor counts Extract calls per path.
type countingIngestor struct {
	Ingestor
	calls map[string]int
}

func (c *countingIngestor) Extract(ctx context.Context, path string) (*Extraction, error) {
	c.calls[filepath.Base(path)]++
	return c.Ingestor.Extract(ctx, path)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
