// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package membank ingests uploaded files into per-session vector tables of
// a memory bank and exposes search and reembedding over those tables.
package membank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/ai/gemini"
	"github.com/poiesic/membank/ai/openai"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/ingestion"
	"github.com/poiesic/membank/reembed"
	"github.com/poiesic/membank/search"
	"github.com/poiesic/membank/storage"
	"github.com/poiesic/membank/storage/badger"
	"github.com/poiesic/membank/storage/postgres"
)

// ErrBankLocked is returned by Open when another process holds the bank.
var ErrBankLocked = errors.New("memory bank is locked by another process")

// dimensionProbe is embedded once to learn the model's vector length.
const dimensionProbe = "dimension probe"

// Bank is an open memory bank: one table store holding session tables,
// the AI provider used to fill them, and the lock guarding single-writer access.
type Bank struct {
	name     string
	lock     *flock.Flock
	store    storage.TableStore
	provider ai.AIProvider
	aiConfig *ai.Config
	dims     int
	root     *slog.Logger
	logger   *slog.Logger
}

// BankOption configures a Bank.
type BankOption func(*bankOptions)

type bankOptions struct {
	aiConfig    *ai.Config
	provider    ai.AIProvider
	databaseURL string
	logger      *slog.Logger
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) BankOption {
	return func(o *bankOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses an already constructed AI provider instead of building
// one from the AI configuration. The bank takes ownership and closes it.
func WithProvider(provider ai.AIProvider) BankOption {
	return func(o *bankOptions) {
		o.provider = provider
	}
}

// WithPostgres stores session tables in PostgreSQL with pgvector instead of
// the embedded BadgerDB database.
func WithPostgres(databaseURL string) BankOption {
	return func(o *bankOptions) {
		o.databaseURL = databaseURL
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) BankOption {
	return func(o *bankOptions) {
		o.logger = logger
	}
}

// Open opens the memory bank named bank under baseDir, creating it if needed.
// The bank's BadgerDB database lives at <baseDir>/<bank>. An exclusive lock
// on <baseDir>/<bank>.lock is held until Close.
func Open(baseDir, bank string, opts ...BankOption) (*Bank, error) {
	options := &bankOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.aiConfig == nil {
		options.aiConfig = ai.DefaultConfig()
	}

	if err := core.ValidateTableName(bank); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	lock := flock.New(filepath.Join(baseDir, bank+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot acquire bank lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrBankLocked, lock.Path())
	}

	// Open store
	var store storage.TableStore
	if options.databaseURL != "" {
		store, err = postgres.NewTableStore(context.Background(), options.databaseURL, bank)
	} else {
		store, err = badger.NewTableStore(filepath.Join(baseDir, bank))
	}
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = NewProvider(context.Background(), options.aiConfig)
		if err != nil {
			_ = store.Close()
			_ = lock.Unlock()
			return nil, err
		}
	}

	return &Bank{
		name:     bank,
		lock:     lock,
		store:    store,
		provider: provider,
		aiConfig: options.aiConfig,
		dims:     options.aiConfig.Dimensions,
		root:     options.logger,
		logger:   options.logger.With("component", "bank", "bank", bank),
	}, nil
}

// NewProvider builds the AI provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderGemini:
		return gemini.NewProvider(ctx, cfg)
	default:
		return openai.NewProvider(cfg)
	}
}

// Name returns the bank name.
func (b *Bank) Name() string {
	return b.name
}

// Store returns the table store holding the bank's sessions.
func (b *Bank) Store() storage.TableStore {
	return b.store
}

// Provider returns the AI provider.
func (b *Bank) Provider() ai.AIProvider {
	return b.provider
}

// NewSession creates the session table fresh, discarding any previous
// contents, and returns an orchestrator that ingests into it.
// Options are applied after the bank's defaults (chunker, credentials, logger).
func (b *Bank) NewSession(ctx context.Context, session string, opts ...ingestion.Option) (*ingestion.Orchestrator, error) {
	dims, err := b.dimensions(ctx)
	if err != nil {
		return nil, err
	}

	table, err := b.store.CreateTable(ctx, session, dims)
	if err != nil {
		return nil, err
	}
	b.logger.Info("session table created", "session", session, "dimensions", dims)

	defaults := []ingestion.Option{
		ingestion.WithChunker(b.provider.Chunker()),
		ingestion.WithCredentials(b.aiConfig.APIKey),
		ingestion.WithLogger(b.root),
	}
	return ingestion.NewOrchestrator(table, b.provider.Embedder(), append(defaults, opts...)...)
}

// Searcher returns a searcher over an existing session table.
func (b *Bank) Searcher(ctx context.Context, session string, opts ...search.Option) (*search.Searcher, error) {
	table, err := b.store.OpenTable(ctx, session)
	if err != nil {
		return nil, err
	}
	return search.NewSearcher(table, b.provider.Embedder(), append([]search.Option{search.WithLogger(b.root)}, opts...)...)
}

// Reembedder returns a reembedder over an existing session table.
// Progress is written to w.
func (b *Bank) Reembedder(ctx context.Context, session string, cfg *reembed.Config, w io.Writer) (*reembed.Reembedder, error) {
	table, err := b.store.OpenTable(ctx, session)
	if err != nil {
		return nil, err
	}
	return reembed.NewReembedder(table, b.provider.Embedder(), cfg, w), nil
}

// Sessions lists the session tables of the bank.
func (b *Bank) Sessions(ctx context.Context) ([]core.TableInfo, error) {
	return b.store.ListTables(ctx)
}

// DropSession removes a session table.
func (b *Bank) DropSession(ctx context.Context, session string) error {
	return b.store.DropTable(ctx, session)
}

// dimensions returns the configured vector length, probing the embedder
// when none is configured.
func (b *Bank) dimensions(ctx context.Context) (int, error) {
	if b.dims > 0 {
		return b.dims, nil
	}
	vector, err := b.provider.Embedder().EmbedText(ctx, dimensionProbe)
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimensions: %w", err)
	}
	if len(vector) == 0 {
		return 0, core.ErrInvalidDimensions
	}
	b.dims = len(vector)
	return len(vector), nil
}

// Close releases the AI provider, the store and the bank lock, in that order.
func (b *Bank) Close() error {
	var errs []error

	// Close AI provider first
	if err := b.provider.Close(); err != nil {
		b.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}

	if err := b.store.Close(); err != nil {
		b.logger.Error("error closing table store", "err", err)
		errs = append(errs, err)
	}

	if err := b.lock.Unlock(); err != nil {
		b.logger.Error("error releasing bank lock", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
