package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrTableRequired is returned when a destination table is not provided.
	ErrTableRequired = errors.New("table required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrChunkerRequired is returned when neither a chunker nor a registry is provided.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrNotSupported is returned by ingestors for formats that have no
	// extraction yet. The orchestrator treats it as a skip, not a failure.
	ErrNotSupported = errors.New("not supported yet")

	// ErrNoIngestor is returned when no ingestor is registered for a category.
	ErrNoIngestor = errors.New("no ingestor registered")

	// ErrMetadataCountMismatch is returned when metadata is given but its
	// length differs from the number of chunks.
	ErrMetadataCountMismatch = errors.New("metadata count does not match chunk count")

	// ErrEmbeddingCountMismatch is returned when the embedder returns a
	// different number of vectors than chunks sent.
	ErrEmbeddingCountMismatch = errors.New("embedding count does not match chunk count")
)

// Stage names the step of a file's ingestion that failed.
type Stage string

const (
	StageClassify Stage = "classify"
	StageExtract  Stage = "extract"
	StageStore    Stage = "store"
	StageArchive  Stage = "archive"
	StageDelete   Stage = "delete"
)

// FileError records a failure while ingesting a single file.
type FileError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
