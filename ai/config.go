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


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Supported embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Provider selects the embedding backend: "openai" for any
	// OpenAI-compatible API (OpenAI, Ollama, vLLM) or "gemini".
	// Default: "openai"
	Provider string

	// EmbeddingHost is the base URL for the embedding service API.
	// Only used by the openai provider.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small", "text-embedding-004"
	EmbeddingModel string

	// APIKey is the credential passed to the embedding service. It is also
	// handed to the PDF preprocessor. Local OpenAI-compatible servers accept
	// an empty key.
	APIKey string

	// Dimensions is the length of the vectors produced by EmbeddingModel.
	// Session tables are declared with this dimensionality. Zero means the
	// dimensionality is probed from the model when a session is created.
	// Default: 768
	Dimensions int

	// EmbeddingBatchSize caps the number of texts sent per embedding request.
	// Zero uses the client library default.
	EmbeddingBatchSize int

	// BreakpointPercentile is the distance percentile (0-100] above which the
	// semantic chunker starts a new chunk.
	// Default: 95
	BreakpointPercentile float64

	// BufferSize is the number of neighbouring sentences on each side
	// combined with a sentence before it is embedded by the chunker.
	// Default: 1
	BufferSize int

	// MaxChunkSize caps chunk length in characters. Oversized semantic
	// chunks are split again with a recursive character splitter.
	// Zero disables the cap.
	MaxChunkSize int

	// ChunkOverlap is the character overlap used when MaxChunkSize splits a chunk.
	ChunkOverlap int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the embedding provider ("openai" or "gemini").
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the embedding service credential.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions sets the embedding vector length.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// WithEmbeddingBatchSize sets the number of texts per embedding request.
func WithEmbeddingBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBatchSize = size
	}
}

// WithBreakpointPercentile sets the semantic chunker breakpoint percentile.
func WithBreakpointPercentile(p float64) ConfigOption {
	return func(c *Config) {
		c.BreakpointPercentile = p
	}
}

// WithBufferSize sets the number of neighbouring sentences combined by the chunker.
func WithBufferSize(size int) ConfigOption {
	return func(c *Config) {
		c.BufferSize = size
	}
}

// WithMaxChunkSize caps chunk length in characters, with the given overlap.
func WithMaxChunkSize(size, overlap int) ConfigOption {
	return func(c *Config) {
		c.MaxChunkSize = size
		c.ChunkOverlap = overlap
	}
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Provider:             ProviderOpenAI,
		EmbeddingHost:        "http://localhost:11434/v1",
		EmbeddingModel:       "embeddinggemma",
		Dimensions:           768,
		BreakpointPercentile: 95,
		BufferSize:           1,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithProvider(ProviderGemini),
//       WithEmbeddingModel("text-embedding-004"),
//       WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It lower-cases the provider and adds the /v1 suffix to the openai host
// if missing, which is required by most OpenAI-compatible APIs.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Provider == ProviderOpenAI && c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
	case ProviderGemini:
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for gemini")
		}
	default:
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimensions < 0 {
		return errors.New("ai config: Dimensions must not be negative")
	}
	if c.BreakpointPercentile <= 0 || c.BreakpointPercentile > 100 {
		return errors.New("ai config: BreakpointPercentile must be in (0, 100]")
	}
	if c.BufferSize < 0 {
		return errors.New("ai config: BufferSize must not be negative")
	}
	if c.MaxChunkSize < 0 || c.ChunkOverlap < 0 {
		return errors.New("ai config: MaxChunkSize and ChunkOverlap must not be negative")
	}
	if c.MaxChunkSize > 0 && c.ChunkOverlap >= c.MaxChunkSize {
		return errors.New("ai config: ChunkOverlap must be smaller than MaxChunkSize")
	}
	return nil
}
