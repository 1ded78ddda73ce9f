package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
)

// DeletePolicy decides which source files are removed after processing.
type DeletePolicy int

const (
	// DeleteAlways removes every file in the manifest once it has been
	// processed, whether or not its content reached the table.
	DeleteAlways DeletePolicy = iota
	// DeleteOnSuccess removes a file only after its records were written.
	DeleteOnSuccess
	// DeleteNever leaves every file on disk.
	DeleteNever
)

func (p DeletePolicy) String() string {
	switch p {
	case DeleteAlways:
		return "always"
	case DeleteOnSuccess:
		return "on-success"
	case DeleteNever:
		return "never"
	default:
		return fmt.Sprintf("DeletePolicy(%d)", int(p))
	}
}

// ParseDeletePolicy parses "always", "on-success" or "never".
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch s {
	case "always", "":
		return DeleteAlways, nil
	case "on-success":
		return DeleteOnSuccess, nil
	case "never":
		return DeleteNever, nil
	default:
		return 0, fmt.Errorf("invalid delete policy %q: must be one of always, on-success, never", s)
	}
}

// Archiver copies a source file somewhere durable before it is deleted.
type Archiver interface {
	Archive(ctx context.Context, path string) (location string, err error)
}

// ProgressFunc is called after each file with the number of files handled
// so far, the manifest total and the path just handled.
type ProgressFunc func(done, total int, path string)

// Status is the ingestion result of a single file.
type Status string

const (
	StatusIngested    Status = "ingested"
	StatusSkipped     Status = "skipped"
	StatusUnsupported Status = "unsupported"
	StatusFailed      Status = "failed"
)

// FileOutcome describes what happened to one manifest file.
type FileOutcome struct {
	Path     string
	Category core.Category
	Status   Status
	Records  int
	Archive  string
	Deleted  bool
	Err      error
}

// Report summarizes a Run.
type Report struct {
	Files   []FileOutcome
	Records int
}

// Count returns the number of files with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Deleted returns the number of files removed from disk.
func (r *Report) Deleted() int {
	n := 0
	for _, f := range r.Files {
		if f.Deleted {
			n++
		}
	}
	return n
}

// Orchestrator routes manifest files to ingestors, writes their chunks to a
// table and disposes of the source files. It is not safe for concurrent Run
// calls.
type Orchestrator struct {
	writer       *StoreWriter
	registry     *Registry
	chunker      ai.Chunker
	preprocessor PDFPreprocessor
	credentials  string
	policy       DeletePolicy
	archiver     Archiver
	progress     ProgressFunc
	remove       func(string) error
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithRegistry sets the ingestors used for dispatch.
// Default is DefaultRegistry built from the chunker.
func WithRegistry(registry *Registry) Option {
	return func(o *Orchestrator) error {
		if registry == nil {
			return errors.New("registry must not be nil")
		}
		o.registry = registry
		return nil
	}
}

// WithChunker sets the chunker used by the default registry.
func WithChunker(chunker ai.Chunker) Option {
	return func(o *Orchestrator) error {
		o.chunker = chunker
		return nil
	}
}

// WithPDFPreprocessor replaces the default PDF loader in the default registry.
func WithPDFPreprocessor(preprocessor PDFPreprocessor) Option {
	return func(o *Orchestrator) error {
		o.preprocessor = preprocessor
		return nil
	}
}

// WithCredentials sets the credentials forwarded to the PDF preprocessor.
func WithCredentials(credentials string) Option {
	return func(o *Orchestrator) error {
		o.credentials = credentials
		return nil
	}
}

// WithDeletePolicy sets which source files are removed.
// Default is DeleteAlways.
func WithDeletePolicy(policy DeletePolicy) Option {
	return func(o *Orchestrator) error {
		if policy < DeleteAlways || policy > DeleteNever {
			return fmt.Errorf("invalid delete policy %d", int(policy))
		}
		o.policy = policy
		return nil
	}
}

// WithArchiver archives each file before it is deleted. Files that fail to
// archive are kept on disk.
func WithArchiver(archiver Archiver) Option {
	return func(o *Orchestrator) error {
		o.archiver = archiver
		return nil
	}
}

// WithProgress sets a callback invoked after each file.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) error {
		o.progress = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an orchestrator writing to table.
func NewOrchestrator(table storage.TableWriter, embedder ai.Embedder, opts ...Option) (*Orchestrator, error) {
	if table == nil {
		return nil, ErrTableRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	o := &Orchestrator{
		policy: DeleteAlways,
		remove: os.Remove,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "ingestion", "table", table.Info().Name)

	if o.registry == nil {
		if o.chunker == nil {
			return nil, ErrChunkerRequired
		}
		o.registry = defaultRegistry(o.chunker, o.preprocessor, o.credentials)
	}

	writer, err := newStoreWriter(table, embedder, o.logger)
	if err != nil {
		return nil, err
	}
	o.writer = writer
	return o, nil
}

// Run processes every file of the manifest in order. A failing file does not
// stop the run; its FileError is joined into the returned error. When ctx is
// cancelled the remaining files are left untouched.
func (o *Orchestrator) Run(ctx context.Context, manifest core.Manifest) (*Report, error) {
	total := manifest.FileCount()
	report := &Report{Files: make([]FileOutcome, 0, total)}
	o.logger.Info("starting ingestion", "files", total, "delete_policy", o.policy.String())

	var errs []error
	done := 0
	for _, entry := range manifest {
		for _, path := range entry.Files {
			if err := ctx.Err(); err != nil {
				o.logger.Warn("ingestion cancelled", "processed", done, "remaining", total-done)
				errs = append(errs, err)
				return report, errors.Join(errs...)
			}

			outcome := o.processFile(ctx, entry.Category, path)
			report.Files = append(report.Files, outcome)
			report.Records += outcome.Records
			if outcome.Err != nil {
				errs = append(errs, outcome.Err)
			}

			done++
			if o.progress != nil {
				o.progress(done, total, path)
			}
		}
	}

	o.logger.Info("ingestion complete",
		"files", total,
		"records", report.Records,
		"ingested", report.Count(StatusIngested),
		"failed", report.Count(StatusFailed),
		"deleted", report.Deleted())
	return report, errors.Join(errs...)
}

func (o *Orchestrator) processFile(ctx context.Context, label, path string) FileOutcome {
	outcome := FileOutcome{Path: path}
	logger := o.logger.With("path", path)

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		err = errors.New("is a directory")
	}
	if err != nil {
		logger.Error("cannot read file", "err", err)
		outcome.Status = StatusFailed
		outcome.Err = &FileError{Path: path, Stage: StageClassify, Err: err}
		return outcome
	}

	category, ok := core.Classify(path)
	if !ok {
		logger.Warn("unsupported file type", "extension", core.Extension(path))
		outcome.Status = StatusUnsupported
	} else {
		outcome.Category = category
		if label != "" && label != string(category) {
			logger.Debug("manifest category differs from extension", "manifest", label, "category", category)
		}
		logger.Info("processing file", "category", category)

		records, err := o.ingest(ctx, category, path)
		switch {
		case errors.Is(err, ErrNotSupported):
			logger.Warn("ingestion skipped", "reason", err)
			outcome.Status = StatusSkipped
		case err != nil:
			logger.Error("ingestion failed", "err", err)
			outcome.Status = StatusFailed
			outcome.Err = err
		default:
			outcome.Status = StatusIngested
			outcome.Records = records
		}
	}

	o.dispose(ctx, &outcome, logger)
	return outcome
}

// ingest extracts and stores a file, returning the number of records written.
func (o *Orchestrator) ingest(ctx context.Context, category core.Category, path string) (int, error) {
	ing, ok := o.registry.Lookup(category)
	if !ok {
		return 0, &FileError{Path: path, Stage: StageExtract, Err: fmt.Errorf("%w: %s", ErrNoIngestor, category)}
	}

	extraction, err := ing.Extract(ctx, path)
	if errors.Is(err, ErrNotSupported) {
		return 0, err
	}
	if err != nil {
		return 0, &FileError{Path: path, Stage: StageExtract, Err: err}
	}
	if extraction == nil || len(extraction.Chunks) == 0 {
		return 0, nil
	}

	records, err := o.writer.Write(ctx, extraction.Chunks, extraction.Metadata)
	if err != nil {
		return 0, &FileError{Path: path, Stage: StageStore, Err: err}
	}
	return len(records), nil
}

// dispose archives and deletes the file according to the delete policy.
func (o *Orchestrator) dispose(ctx context.Context, outcome *FileOutcome, logger *slog.Logger) {
	switch o.policy {
	case DeleteNever:
		return
	case DeleteOnSuccess:
		if outcome.Status != StatusIngested {
			logger.Debug("keeping file", "status", outcome.Status)
			return
		}
	}

	if o.archiver != nil {
		location, err := o.archiver.Archive(ctx, outcome.Path)
		if err != nil {
			logger.Error("archive failed, keeping file", "err", err)
			outcome.Err = errors.Join(outcome.Err, &FileError{Path: outcome.Path, Stage: StageArchive, Err: err})
			return
		}
		outcome.Archive = location
		logger.Debug("archived file", "location", location)
	}

	if err := o.remove(outcome.Path); err != nil {
		logger.Error("delete failed", "err", err)
		outcome.Err = errors.Join(outcome.Err, &FileError{Path: outcome.Path, Stage: StageDelete, Err: err})
		return
	}
	outcome.Deleted = true
	logger.Debug("deleted file")
}
