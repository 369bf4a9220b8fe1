package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/gentable/core"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Document is one loaded part of a file, usually a page.
type Document struct {
	Text string
	// Page is the 1-based page number, or 0 when the format has no pages.
	Page int
}

// Loader extracts text from a file.
type Loader interface {
	Load(ctx context.Context, name string, content []byte) ([]Document, error)
}

// Splitter cuts documents into ordered chunks of at most size characters,
// consecutive chunks sharing up to overlap characters.
type Splitter interface {
	Split(docs []Document, size, overlap int) ([]core.Chunk, error)
}

// FileLoader picks a langchaingo document loader from the file extension.
type FileLoader struct{}

var _ Loader = FileLoader{}

func (FileLoader) Load(ctx context.Context, name string, content []byte) ([]Document, error) {
	r := bytes.NewReader(content)
	var loader documentloaders.Loader
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case "", ".txt", ".md", ".markdown", ".log":
		loader = documentloaders.NewText(r)
	case ".html", ".htm":
		loader = documentloaders.NewHTML(r)
	case ".csv":
		loader = documentloaders.NewCSV(r)
	case ".pdf":
		loader = documentloaders.NewPDF(r, int64(len(content)))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, Document{Text: d.PageContent, Page: pageOf(d)})
	}
	return out, nil
}

func pageOf(d schema.Document) int {
	switch p := d.Metadata["page"].(type) {
	case int:
		return p
	case int64:
		return int(p)
	case float64:
		return int(p)
	default:
		return 0
	}
}

// RecursiveSplitter splits on paragraph, line and word boundaries using the
// langchaingo recursive character splitter.
type RecursiveSplitter struct{}

var _ Splitter = RecursiveSplitter{}

func (RecursiveSplitter) Split(docs []Document, size, overlap int) ([]core.Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
	var chunks []core.Chunk
	for _, doc := range docs {
		parts, err := splitter.SplitText(doc.Text)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, core.Chunk{Text: part, Position: len(chunks), Page: doc.Page})
		}
	}
	return chunks, nil
}
