// Package ingestion turns uploaded files into records of a session table.
//
// The Orchestrator walks a core.Manifest in order. Each file is classified
// by extension and handed to the Ingestor registered for its category,
// which extracts text, chunks it and attaches file metadata. The StoreWriter
// embeds all chunks of a file in one call and appends them to the table in
// one batch. Afterwards the source file is archived (optional) and deleted
// according to the DeletePolicy.
//
// Unsupported file types and formats without an implementation are logged
// and skipped. Any other failure aborts only the file concerned and is
// reported as a *FileError.
package ingestion
