package core

import (
	"maps"
	"slices"
	"time"
)

// Metadata keys attached to ingested records.
const (
	MetaFileName   = "file_name"
	MetaOtherFiles = "other_files"
	MetaDocInfo    = "doc_info"
	MetaFileType   = "file_type"
	MetaPagesSize  = "pages_size"
	MetaRows       = "rows"
)

// Record is one stored chunk of ingested content.
type Record struct {
	ID       string         // Opaque random identifier, unique per record
	Vector   []float32      // Embedding vector, length fixed by the table schema
	Text     string         // Raw chunk text
	Metadata map[string]any // File-level metadata (file name, siblings, doc info)
}

// TableInfo describes a session table.
type TableInfo struct {
	Name       string
	Dimensions int
	CreatedAt  time.Time
}

// ManifestEntry is one category label with the files to ingest under it.
type ManifestEntry struct {
	Category string
	Files    []string
}

// Manifest lists files to ingest, in iteration order.
type Manifest []ManifestEntry

// ManifestFromMap builds a Manifest from a category -> files mapping.
// Categories are sorted so iteration order is stable.
func ManifestFromMap(m map[string][]string) Manifest {
	manifest := make(Manifest, 0, len(m))
	for _, category := range slices.Sorted(maps.Keys(m)) {
		manifest = append(manifest, ManifestEntry{
			Category: category,
			Files:    slices.Clone(m[category]),
		})
	}
	return manifest
}

// FileCount returns the total number of files in the manifest.
func (m Manifest) FileCount() int {
	count := 0
	for _, entry := range m {
		count += len(entry.Files)
	}
	return count
}

// SearchResult represents a search result with the full record and relevance score.
type SearchResult struct {
	Record *Record
	Score  float32
}
