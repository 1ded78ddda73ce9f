package ingestion

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/core"
)

// Ingestor extracts chunks and per-chunk metadata from one kind of file.
type Ingestor interface {
	// Category returns the file category this ingestor handles.
	Category() core.Category

	// Extract reads the file at path and returns its chunks.
	// Formats without an implementation return ErrNotSupported.
	Extract(ctx context.Context, path string) (*Extraction, error)
}

// Extraction is the output of an Ingestor: chunks in document order and one
// metadata map per chunk.
type Extraction struct {
	Chunks   []string
	Metadata []map[string]any
}

// Registry maps categories to ingestors.
type Registry struct {
	ingestors map[core.Category]Ingestor
}

// NewRegistry creates a registry holding the given ingestors. A later
// ingestor replaces an earlier one for the same category.
func NewRegistry(ingestors ...Ingestor) *Registry {
	r := &Registry{ingestors: make(map[core.Category]Ingestor, len(ingestors))}
	for _, ing := range ingestors {
		r.Register(ing)
	}
	return r
}

// DefaultRegistry registers an ingestor for every category. PDF and text
// extraction use the chunker; image and sound are placeholders.
func DefaultRegistry(chunker ai.Chunker, preprocessor PDFPreprocessor) *Registry {
	return defaultRegistry(chunker, preprocessor, "")
}

func defaultRegistry(chunker ai.Chunker, preprocessor PDFPreprocessor, credentials string) *Registry {
	if preprocessor == nil {
		preprocessor = NewPDFLoader()
	}
	return NewRegistry(
		NewTextIngestor(chunker),
		NewPDFIngestor(preprocessor, chunker).WithCredentials(credentials),
		NewWordIngestor(chunker),
		NewImageIngestor(),
		NewSoundIngestor(),
	)
}

// Register adds or replaces the ingestor for its category.
func (r *Registry) Register(ing Ingestor) {
	r.ingestors[ing.Category()] = ing
}

// Lookup returns the ingestor for category.
func (r *Registry) Lookup(category core.Category) (Ingestor, bool) {
	ing, ok := r.ingestors[category]
	return ing, ok
}

// Categories returns the registered categories in sorted order.
func (r *Registry) Categories() []core.Category {
	return slices.Sorted(maps.Keys(r.ingestors))
}

// documentName is the base name cut at its first '.'.
func documentName(path string) string {
	name, _, _ := strings.Cut(filepath.Base(path), ".")
	return name
}

// siblingNames lists the entries of the directory holding path, the file
// itself included, sorted by name.
func siblingNames(path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return names, nil
}

// chunkMetadata builds n identical metadata maps describing the file at path.
// Every map is a separate copy.
func chunkMetadata(n int, path string, docInfo map[string]any) ([]map[string]any, error) {
	siblings, err := siblingNames(path)
	if err != nil {
		return nil, err
	}
	name := documentName(path)

	metadata := make([]map[string]any, n)
	for i := range metadata {
		metadata[i] = map[string]any{
			core.MetaFileName:   name,
			core.MetaOtherFiles: slices.Clone(siblings),
			core.MetaDocInfo:    maps.Clone(docInfo),
		}
	}
	return metadata, nil
}

// chunkText splits text with chunker and attaches file metadata.
func chunkText(ctx context.Context, chunker ai.Chunker, path, text string, docInfo map[string]any) (*Extraction, error) {
	chunks, err := chunker.Split(ctx, text)
	if err != nil {
		return nil, err
	}
	metadata, err := chunkMetadata(len(chunks), path, docInfo)
	if err != nil {
		return nil, err
	}
	return &Extraction{Chunks: chunks, Metadata: metadata}, nil
}
