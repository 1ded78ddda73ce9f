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


package ingestion

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/poiesic/membank/ai"
	"github.com/poiesic/membank/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// PDFPreprocessor turns a PDF into plain text and reports its page count.
// credentials is the model-service key configured for the bank; preprocessors
// that only parse the file may ignore it.
type PDFPreprocessor interface {
	Preprocess(ctx context.Context, path, credentials string) (text string, pages int, err error)
}

// PDFLoader is the default PDFPreprocessor. It reads the text of every page
// with the langchaingo PDF loader.
type PDFLoader struct {
	// Password opens encrypted documents.
	Password string
}

var _ PDFPreprocessor = (*PDFLoader)(nil)

// NewPDFLoader creates a PDF loader for unencrypted documents.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Preprocess returns the page texts joined by blank lines and the number of
// pages in the document.
func (l *PDFLoader) Preprocess(ctx context.Context, path, _ string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	var opts []documentloaders.PDFOptions
	if l.Password != "" {
		opts = append(opts, documentloaders.WithPassword(l.Password))
	}
	docs, err := documentloaders.NewPDF(f, info.Size(), opts...).Load(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("load pdf: %w", err)
	}

	pages := len(docs)
	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if total, ok := doc.Metadata["total_pages"].(int); ok {
			pages = total
		}
		if text := strings.TrimSpace(doc.PageContent); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n"), pages, nil
}

// PDFIngestor preprocesses a PDF, chunks its text semantically and tags
// every chunk with the document name, its sibling files and page count.
type PDFIngestor struct {
	preprocessor PDFPreprocessor
	chunker      ai.Chunker
	credentials  string
}

var _ Ingestor = (*PDFIngestor)(nil)

// NewPDFIngestor creates a PDF ingestor.
func NewPDFIngestor(preprocessor PDFPreprocessor, chunker ai.Chunker) *PDFIngestor {
	return &PDFIngestor{preprocessor: preprocessor, chunker: chunker}
}

// WithCredentials returns a copy of the ingestor that forwards credentials
// to the preprocessor.
func (p *PDFIngestor) WithCredentials(credentials string) *PDFIngestor {
	cp := *p
	cp.credentials = credentials
	return &cp
}

func (p *PDFIngestor) Category() core.Category {
	return core.CategoryPDF
}

func (p *PDFIngestor) Extract(ctx context.Context, path string) (*Extraction, error) {
	text, pages, err := p.preprocessor.Preprocess(ctx, path, p.credentials)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	return chunkText(ctx, p.chunker, path, text, map[string]any{
		core.MetaFileType:  "pdf",
		core.MetaPagesSize: pages,
	})
}
