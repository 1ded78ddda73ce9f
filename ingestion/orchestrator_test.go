package ingestion

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/membank/ai/mock"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
	"github.com/poiesic/membank/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionTable(t *testing.T) storage.Table {
	t.Helper()
	store, err := badger.NewMemoryTableStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	table, err := store.CreateTable(context.Background(), "session", mock.DefaultDimensions)
	require.NoError(t, err)
	return table
}

func allRecords(t *testing.T, table storage.Table) []*core.Record {
	t.Helper()
	var records []*core.Record
	err := table.ForEach(context.Background(), 100, func(batch []*core.Record) error {
		records = append(records, batch...)
		return nil
	})
	require.NoError(t, err)
	return records
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist, path)
}

func assertPresent(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.NoError(t, err, path)
}

func TestOrchestrator_PDFScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "reportA.pdf", "%PDF-1.4")
	table := newSessionTable(t)

	chunker := mock.NewMockChunker()
	chunker.SplitFunc = func(context.Context, string) ([]string, error) {
		return []string{"Intro.", "Body text."}, nil
	}
	pre := &fakePreprocessor{text: "Intro. Body text.", pages: 3}

	o, err := NewOrchestrator(table, mock.NewMockEmbedder(),
		WithChunker(chunker),
		WithPDFPreprocessor(pre),
		WithCredentials("sk-test"),
	)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), core.ManifestFromMap(map[string][]string{"pdf": {path}}))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Records)
	require.Len(t, report.Files, 1)
	assert.Equal(t, StatusIngested, report.Files[0].Status)
	assert.Equal(t, core.CategoryPDF, report.Files[0].Category)
	assert.True(t, report.Files[0].Deleted)
	assert.Equal(t, []string{"sk-test"}, pre.credentials)
	assertGone(t, path)

	records := allRecords(t, table)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.NotEqual(t, records[0].Vector, records[1].Vector)
	assert.ElementsMatch(t, []string{"Intro.", "Body text."}, []string{records[0].Text, records[1].Text})
	for _, r := range records {
		assert.Equal(t, "reportA", r.Metadata[core.MetaFileName])
		assert.Equal(t, map[string]any{"file_type": "pdf", "pages_size": 3}, r.Metadata[core.MetaDocInfo])
		assert.Equal(t, []string{"reportA.pdf"}, r.Metadata[core.MetaOtherFiles])
	}

	// Round trip by generated ID.
	got, err := table.GetRecord(context.Background(), records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, records[0].Text, got.Text)
	assert.Equal(t, records[0].Metadata, got.Metadata)
}

func TestOrchestrator_ImageIsDeletedWithoutWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "photo.png", "png")
	table := newSessionTable(t)
	embedder := mock.NewMockEmbedder()

	o, err := NewOrchestrator(table, embedder, WithChunker(mock.NewMockChunker()))
	require.NoError(t, err)

	report, err := o.Run(context.Background(), core.ManifestFromMap(map[string][]string{"image": {path}}))
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, report.Files[0].Status)
	assert.True(t, report.Files[0].Deleted)
	assert.Zero(t, embedder.CallCount())
	assertGone(t, path)

	count, err := table.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOrchestrator_DispatchesOnceAndDeletesAll(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"notes.txt":  "Hello there.\n\nSecond paragraph.",
		"data.csv":   "k,v\na,1\n",
		"report.pdf": "%PDF",
		"memo.docx":  "zip",
		"photo.png":  "png",
		"song.mp3":   "mp3",
		"readme.md":  "# unsupported",
	}
	paths := map[string]string{}
	for name, content := range files {
		paths[name] = writeFile(t, dir, name, content)
	}

	chunker := mock.NewMockChunker()
	word := NewWordIngestor(chunker)
	word.convert = func(io.Reader, string) (string, error) { return "Memo.", nil }

	calls := map[string]int{}
	wrap := func(ing Ingestor) Ingestor { return &countingIngestor{Ingestor: ing, calls: calls} }
	registry := NewRegistry(
		wrap(NewTextIngestor(chunker)),
		wrap(NewPDFIngestor(&fakePreprocessor{text: "Page one.", pages: 1}, chunker)),
		wrap(word),
		wrap(NewImageIngestor()),
		wrap(NewSoundIngestor()),
	)

	table := newSessionTable(t)
	o, err := NewOrchestrator(table, mock.NewMockEmbedder(), WithRegistry(registry))
	require.NoError(t, err)

	manifest := core.ManifestFromMap(map[string][]string{
		"text":  {paths["notes.txt"], paths["data.csv"]},
		"pdf":   {paths["report.pdf"]},
		"word":  {paths["memo.docx"]},
		"image": {paths["photo.png"]},
		"sound": {paths["song.mp3"]},
		"other": {paths["readme.md"]},
	})

	report, err := o.Run(context.Background(), manifest)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"notes.txt": 1, "data.csv": 1, "report.pdf": 1, "memo.docx": 1, "photo.png": 1, "song.mp3": 1,
	}, calls)
	for _, p := range paths {
		assertGone(t, p)
	}
	assert.Equal(t, len(files), report.Deleted())
	assert.Equal(t, 4, report.Count(StatusIngested))
	assert.Equal(t, 2, report.Count(StatusSkipped))
	assert.Equal(t, 1, report.Count(StatusUnsupported))

	// notes: 2 chunks, csv: 1, pdf: 1, memo: 1
	assert.Equal(t, 5, report.Records)
	count, err := table.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestOrchestrator_DeleteOnSuccess(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "Fine.")
	bad := writeFile(t, dir, "bad.pdf", "%PDF")
	image := writeFile(t, dir, "photo.jpg", "jpg")
	odd := writeFile(t, dir, "odd.xyz", "?")

	boom := errors.New("corrupt pdf")
	o, err := NewOrchestrator(newSessionTable(t), mock.NewMockEmbedder(),
		WithChunker(mock.NewMockChunker()),
		WithPDFPreprocessor(&fakePreprocessor{err: boom}),
		WithDeletePolicy(DeleteOnSuccess),
	)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), core.Manifest{
		{Category: "mixed", Files: []string{good, bad, image, odd}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, bad, fe.Path)
	assert.Equal(t, StageExtract, fe.Stage)

	assertGone(t, good)
	assertPresent(t, bad)
	assertPresent(t, image)
	assertPresent(t, odd)
	assert.Equal(t, StatusFailed, report.Files[1].Status)
	assert.Equal(t, 1, report.Records)
}

func TestOrchestrator_DeleteNever(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Kept.")

	o, err := NewOrchestrator(newSessionTable(t), mock.NewMockEmbedder(),
		WithChunker(mock.NewMockChunker()),
		WithDeletePolicy(DeleteNever),
	)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), core.ManifestFromMap(map[string][]string{"text": {path}}))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Records)
	assert.False(t, report.Files[0].Deleted)
	assertPresent(t, path)
}

func TestOrchestrator_StoreFailureStillDeletes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Lost.")

	boom := errors.New("embedding service down")
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, boom
	}

	o, err := NewOrchestrator(newSessionTable(t), embedder, WithChunker(mock.NewMockChunker()))
	require.NoError(t, err)

	report, err := o.Run(context.Background(), core.ManifestFromMap(map[string][]string{"text": {path}}))
	require.ErrorIs(t, err, boom)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StageStore, fe.Stage)
	assert.Equal(t, StatusFailed, report.Files[0].Status)
	assert.True(t, report.Files[0].Deleted)
	assertGone(t, path)
}

type fakeArchiver struct {
	archived []string
	err      error
}

func (f *fakeArchiver) Archive(_ context.Context, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.archived = append(f.archived, path)
	return "s3://bucket/" + filepath.Base(path), nil
}

func TestOrchestrator_Archiver(t *testing.T) {
	t.Run("archives before delete", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "notes.txt", "Archived.")
		archiver := &fakeArchiver{}

		o, err := NewOrchestrator(newSessionTable(t), mock.NewMockEmbedder(),
			WithChunker(mock.NewMockChunker()),
			WithArchiver(archiver),
		)
		require.NoError(t, err)

		report, err := o.Run(context.Background(), core.ManifestFromMap(map[string][]string{"text": {path}}))
		require.NoError(t, err)
		assert.Equal(t, []string{path}, archiver.archived)
		assert.Equal(t, "s3://bucket/notes.txt", report.Files[0].Archive)
		assertGone(t, path)
	})

	t.Run("archive failure keeps file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "notes.txt", "Kept.")
		boom := errors.New("access denied")

		o, err := NewOrchestrator(newSessionTable(t), mock.NewMockEmbedder(),
			WithChunker(mock.NewMockChunker()),
			WithArchiver(&fakeArchiver{err: boom}),
		)
		require.NoError(t, err)

		report, err := o.Run(context.Background(), core.ManifestFromMap(map[string][]string{"text": {path}}))
		require.ErrorIs(t, err, boom)

		var fe *FileError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, StageArchive, fe.Stage)
		assert.Equal(t, StatusIngested, report.Files[0].Status)
		assert.False(t, report.Files[0].Deleted)
		assertPresent(t, path)
	})
}

func TestOrchestrator_DeleteFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Stuck.")

	o, err := NewOrchestrator(newSessionTable(t), mock.NewMockEmbedder(), WithChunker(mock.NewMockChunker()))
	require.NoError(t, err)
	boom := errors.New("read-only filesystem")
	o.remove = func(string) error { return boom }

	report, err := o.Run(context.Background(), core.ManifestFromMap(map[string][]string{"text": {path}}))
	require.ErrorIs(t, err, boom)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StageDelete, fe.Stage)
	assert.False(t, report.Files[0].Deleted)
}

func TestOrchestrator_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.txt")

	o, err := NewOrchestrator(newSessionTable(t), mock.NewMockEmbedder(), WithChunker(mock.NewMockChunker()))
	require.NoError(t, err)

	report, err := o.Run(context.Background(), core.ManifestFromMap(map[string][]string{"text": {missing}}))
	require.ErrorIs(t, err, os.ErrNotExist)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StageClassify, fe.Stage)
	assert.Equal(t, StatusFailed, report.Files[0].Status)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "A.")
	b := writeFile(t, dir, "b.txt", "B.")

	o, err := NewOrchestrator(newSessionTable(t), mock.NewMockEmbedder(), WithChunker(mock.NewMockChunker()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx, core.ManifestFromMap(map[string][]string{"text": {a, b}}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Files)
	assertPresent(t, a)
	assertPresent(t, b)
}

func TestOrchestrator_Progress(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "A.")
	b := writeFile(t, dir, "b.png", "B")

	type tick struct {
		done, total int
		path        string
	}
	var ticks []tick
	o, err := NewOrchestrator(newSessionTable(t), mock.NewMockEmbedder(),
		WithChunker(mock.NewMockChunker()),
		WithProgress(func(done, total int, path string) {
			ticks = append(ticks, tick{done, total, path})
		}),
	)
	require.NoError(t, err)

	_, err = o.Run(context.Background(), core.Manifest{{Category: "any", Files: []string{a, b}}})
	require.NoError(t, err)
	assert.Equal(t, []tick{{1, 2, a}, {2, 2, b}}, ticks)
}

func TestNewOrchestrator_Validation(t *testing.T) {
	table := newFakeTable(3)
	embedder := mock.NewMockEmbedder()

	_, err := NewOrchestrator(nil, embedder)
	assert.ErrorIs(t, err, ErrTableRequired)

	_, err = NewOrchestrator(table, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewOrchestrator(table, embedder)
	assert.ErrorIs(t, err, ErrChunkerRequired)

	_, err = NewOrchestrator(table, embedder, WithRegistry(nil))
	assert.Error(t, err)

	_, err = NewOrchestrator(table, embedder, WithChunker(mock.NewMockChunker()), WithDeletePolicy(DeletePolicy(7)))
	assert.Error(t, err)

	o, err := NewOrchestrator(table, embedder, WithRegistry(NewRegistry()), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, DeleteAlways, o.policy)
}

func TestParseDeletePolicy(t *testing.T) {
	for _, p := range []DeletePolicy{DeleteAlways, DeleteOnSuccess, DeleteNever} {
		got, err := ParseDeletePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParseDeletePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DeleteAlways, got)

	_, err = ParseDeletePolicy("sometimes")
	assert.Error(t, err)
}

func TestFileError(t *testing.T) {
	inner := errors.New("boom")
	err := &FileError{Path: "/x.pdf", Stage: StageStore, Err: inner}

	assert.Equal(t, "store /x.pdf: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}
