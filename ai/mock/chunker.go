package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/membank/ai"
)

// MockChunker is a test double for ai.Chunker.
// It allows custom behavior injection via function fields.
type MockChunker struct {
	// SplitFunc is called by Split if set.
	// If nil, text is split on blank lines.
	SplitFunc func(ctx context.Context, text string) ([]string, error)

	mu        sync.Mutex
	callCount int
}

var _ ai.Chunker = (*MockChunker)(nil)

// NewMockChunker creates a mock chunker with default paragraph splitting.
// Note: Returns concrete type to allow test assertions via GetMockChunker().
func NewMockChunker() *MockChunker {
	return &MockChunker{}
}

// Split returns the paragraphs of text, trimmed, skipping empty ones.
func (m *MockChunker) Split(ctx context.Context, text string) ([]string, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.SplitFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		if p := strings.TrimSpace(para); p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// CallCount returns the number of times Split was called.
func (m *MockChunker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom behavior.
func (m *MockChunker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.SplitFunc = nil
}
