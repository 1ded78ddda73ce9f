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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentName(t *testing.T) {
	assert.Equal(t, "reportA", documentName("/uploads/reportA.pdf"))
	assert.Equal(t, "archive", documentName("/uploads/archive.tar.gz"))
	assert.Equal(t, "Makefile", documentName("Makefile"))
}

func TestSiblingNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "b.pdf", "x")
	writeFile(t, dir, "a.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o700))

	names, err := siblingNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.pdf", "sub"}, names)

	_, err = siblingNames(filepath.Join(dir, "missing", "c.pdf"))
	assert.Error(t, err)
}

func TestPDFIngestor_Extract(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "reportA.pdf", "%PDF-1.4")
	writeFile(t, dir, "notes.txt", "hello")

	pre := &fakePreprocessor{text: "Intro. Body text.", pages: 3}
	chunker := mock.NewMockChunker()
	chunker.SplitFunc = func(_ context.Context, text string) ([]string, error) {
		assert.Equal(t, "Intro. Body text.", text)
		return []string{"Intro.", "Body text."}, nil
	}

	ing := NewPDFIngestor(pre, chunker).WithCredentials("sk-test")
	assert.Equal(t, core.CategoryPDF, ing.Category())

	ext, err := ing.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Intro.", "Body text."}, ext.Chunks)
	require.Len(t, ext.Metadata, 2)
	want := map[string]any{
		"file_name":   "reportA",
		"other_files": []string{"notes.txt", "reportA.pdf"},
		"doc_info":    map[string]any{"file_type": "pdf", "pages_size": 3},
	}
	for _, m := range ext.Metadata {
		assert.Equal(t, want, m)
	}
	assert.Equal(t, []string{"sk-test"}, pre.credentials)
	assert.Equal(t, []string{path}, pre.paths)

	// Each chunk owns its metadata.
	ext.Metadata[0][core.MetaDocInfo].(map[string]any)["pages_size"] = 99
	assert.Equal(t, 3, ext.Metadata[1][core.MetaDocInfo].(map[string]any)["pages_size"])
}

func TestPDFIngestor_PreprocessError(t *testing.T) {
	boom := errors.New("corrupt pdf")
	ing := NewPDFIngestor(&fakePreprocessor{err: boom}, mock.NewMockChunker())

	_, err := ing.Extract(context.Background(), "/nowhere/x.pdf")
	assert.ErrorIs(t, err, boom)
}

func TestPDFLoader_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := NewPDFLoader().Preprocess(context.Background(), filepath.Join(dir, "missing.pdf"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := writeFile(t, dir, "bad.pdf", "this is not a pdf")
	_, _, err = NewPDFLoader().Preprocess(context.Background(), path, "")
	assert.Error(t, err)
}

func TestTextIngestor_Text(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "First paragraph.\n\nSecond paragraph.\n")

	ing := NewTextIngestor(mock.NewMockChunker())
	assert.Equal(t, core.CategoryText, ing.Category())

	ext, err := ing.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"First paragraph.", "Second paragraph."}, ext.Chunks)
	require.Len(t, ext.Metadata, 2)
	assert.Equal(t, map[string]any{
		"file_name":   "notes",
		"other_files": []string{"notes.txt"},
		"doc_info":    map[string]any{"file_type": "txt"},
	}, ext.Metadata[0])
}

func TestTextIngestor_CSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.csv", "name,age\nann,30\nbob,41\n")

	ext, err := NewTextIngestor(mock.NewMockChunker()).Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"name: ann\nage: 30", "name: bob\nage: 41"}, ext.Chunks)
	assert.Equal(t, map[string]any{"file_type": "csv", "rows": 2}, ext.Metadata[0][core.MetaDocInfo])
}

func TestTextIngestor_Empty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.json", "")

	ext, err := NewTextIngestor(mock.NewMockChunker()).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, ext.Chunks)
	assert.Empty(t, ext.Metadata)
}

func TestTextIngestor_Missing(t *testing.T) {
	_, err := NewTextIngestor(mock.NewMockChunker()).Extract(context.Background(), "/nowhere/notes.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWordIngestor_Extract(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "memo.docx", "zip bytes")

	var gotMime string
	ing := NewWordIngestor(mock.NewMockChunker())
	ing.convert = func(r io.Reader, mimeType string) (string, error) {
		gotMime = mimeType
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "zip bytes", string(data))
		return "Memo body.\n\nSigned.", nil
	}
	assert.Equal(t, core.CategoryWord, ing.Category())

	ext, err := ing.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, wordMimeTypes["docx"], gotMime)
	assert.Equal(t, []string{"Memo body.", "Signed."}, ext.Chunks)
	assert.Equal(t, map[string]any{"file_type": "word"}, ext.Metadata[1][core.MetaDocInfo])
}

func TestWordIngestor_ConvertError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "memo.doc", "x")

	boom := errors.New("antiword not found")
	ing := NewWordIngestor(mock.NewMockChunker())
	ing.convert = func(io.Reader, string) (string, error) { return "", boom }

	_, err := ing.Extract(context.Background(), path)
	assert.ErrorIs(t, err, boom)
}

func TestPlaceholderIngestors(t *testing.T) {
	for _, ing := range []Ingestor{NewImageIngestor(), NewSoundIngestor()} {
		t.Run(string(ing.Category()), func(t *testing.T) {
			ext, err := ing.Extract(context.Background(), "/uploads/file")
			assert.Nil(t, ext)
			assert.ErrorIs(t, err, ErrNotSupported)
			assert.Contains(t, err.Error(), "not supported yet")
		})
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(mock.NewMockChunker(), nil)
	assert.Equal(t, []core.Category{
		core.CategoryImage, core.CategoryPDF, core.CategorySound, core.CategoryText, core.CategoryWord,
	}, r.Categories())

	for _, c := range core.Categories {
		ing, ok := r.Lookup(c)
		require.True(t, ok, c)
		assert.Equal(t, c, ing.Category())
	}

	custom := NewRegistry(NewImageIngestor())
	_, ok := custom.Lookup(core.CategoryPDF)
	assert.False(t, ok)

	pdf := NewPDFIngestor(&fakePreprocessor{}, mock.NewMockChunker())
	custom.Register(pdf)
	got, ok := custom.Lookup(core.CategoryPDF)
	require.True(t, ok)
	assert.Same(t, pdf, got)
}
