package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/poiesic/membank/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultBreakpointPercentile = 95
	defaultBufferSize           = 1
)

// sentenceBoundary matches the whitespace that follows sentence-ending punctuation.
var sentenceBoundary = regexp2.MustCompile(`(?<=[.?!])\s+`, regexp2.None)

// ErrEmbeddingMismatch is returned when the embedder returns a different
// number of vectors than sentences sent.
var ErrEmbeddingMismatch = errors.New("embedding count mismatch")

// Chunker implements ai.Chunker by grouping adjacent sentences whose
// embeddings are close and breaking where the distance between neighbours
// exceeds a percentile threshold.
type Chunker struct {
	embedder   embeddings.Embedder
	percentile float64
	bufferSize int
	splitter   textsplitter.TextSplitter
	maxSize    int
	logger     *slog.Logger
}

var _ ai.Chunker = (*Chunker)(nil)

// Option configures a Chunker.
type Option func(*Chunker) error

// WithBreakpointPercentile sets the distance percentile above which a new
// chunk starts. Default is 95.
func WithBreakpointPercentile(p float64) Option {
	return func(c *Chunker) error {
		if p <= 0 || p > 100 {
			return fmt.Errorf("breakpoint percentile must be in (0, 100], got %v", p)
		}
		c.percentile = p
		return nil
	}
}

// WithBufferSize sets how many neighbouring sentences on each side are
// combined with a sentence before embedding. Default is 1.
func WithBufferSize(size int) Option {
	return func(c *Chunker) error {
		if size < 0 {
			return fmt.Errorf("buffer size must not be negative, got %d", size)
		}
		c.bufferSize = size
		return nil
	}
}

// WithMaxChunkSize splits chunks longer than size characters with a
// recursive character splitter. Zero disables the cap.
func WithMaxChunkSize(size, overlap int) Option {
	return func(c *Chunker) error {
		if size <= 0 {
			c.splitter = nil
			c.maxSize = 0
			return nil
		}
		if overlap < 0 || overlap >= size {
			return fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
		}
		c.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		)
		c.maxSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "semantic-chunker")
		return nil
	}
}

// OptionsFromConfig maps the chunker settings of an ai.Config to options.
func OptionsFromConfig(cfg *ai.Config) []Option {
	return []Option{
		WithBreakpointPercentile(cfg.BreakpointPercentile),
		WithBufferSize(cfg.BufferSize),
		WithMaxChunkSize(cfg.MaxChunkSize, cfg.ChunkOverlap),
	}
}

// NewChunker creates a semantic chunker driven by embedder.
//
// Returns ai.Chunker interface to enforce abstraction.
func NewChunker(embedder embeddings.Embedder, opts ...Option) (ai.Chunker, error) {
	return newChunker(embedder, opts...)
}

// newChunker is an internal constructor that returns the concrete type.
func newChunker(embedder embeddings.Embedder, opts ...Option) (*Chunker, error) {
	if embedder == nil {
		return nil, errors.New("embedder required")
	}
	c := &Chunker{
		embedder:   embedder,
		percentile: defaultBreakpointPercentile,
		bufferSize: defaultBufferSize,
		logger:     slog.Default().With("component", "semantic-chunker"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Split returns the semantic chunks of text in document order.
func (c *Chunker) Split(ctx context.Context, text string) ([]string, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(sentences) == 1 {
		return c.capSize(sentences)
	}

	combined := combineSentences(sentences, c.bufferSize)
	vectors, err := c.embedder.EmbedDocuments(ctx, combined)
	if err != nil {
		c.logger.Error("failed to embed sentences", "sentences", len(combined), "err", err)
		return nil, err
	}
	if len(vectors) != len(combined) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(combined), len(vectors))
	}

	distances := cosineDistances(vectors)
	threshold := percentile(distances, c.percentile)

	var chunks []string
	start := 0
	for i, distance := range distances {
		if distance > threshold {
			chunks = append(chunks, strings.Join(sentences[start:i+1], " "))
			start = i + 1
		}
	}
	if start < len(sentences) {
		chunks = append(chunks, strings.Join(sentences[start:], " "))
	}

	c.logger.Debug("split text", "sentences", len(sentences), "chunks", len(chunks), "threshold", threshold)
	return c.capSize(chunks)
}

// capSize re-splits chunks longer than the configured maximum.
func (c *Chunker) capSize(chunks []string) ([]string, error) {
	if c.splitter == nil {
		return chunks, nil
	}
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk) <= c.maxSize {
			out = append(out, chunk)
			continue
		}
		parts, err := c.splitter.SplitText(chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

// splitSentences splits on whitespace following '.', '?' or '!'.
// Empty pieces are dropped.
func splitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var sentences []string
	start := 0
	m, err := sentenceBoundary.FindRunesMatch(runes)
	for err == nil && m != nil {
		if s := strings.TrimSpace(string(runes[start:m.Index])); s != "" {
			sentences = append(sentences, s)
		}
		start = m.Index + m.Length
		m, err = sentenceBoundary.FindNextMatch(m)
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// combineSentences joins each sentence with bufferSize neighbours on either side.
func combineSentences(sentences []string, bufferSize int) []string {
	combined := make([]string, len(sentences))
	for i := range sentences {
		lo := max(0, i-bufferSize)
		hi := min(len(sentences), i+bufferSize+1)
		combined[i] = strings.Join(sentences[lo:hi], " ")
	}
	return combined
}

// cosineDistances returns 1 - cosine similarity for each adjacent pair.
func cosineDistances(vectors [][]float32) []float64 {
	if len(vectors) < 2 {
		return nil
	}
	distances := make([]float64, len(vectors)-1)
	for i := 0; i < len(vectors)-1; i++ {
		distances[i] = 1 - cosineSimilarity(vectors[i], vectors[i+1])
	}
	return distances
}

func cosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// percentile computes the p-th percentile with linear interpolation between
// closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
