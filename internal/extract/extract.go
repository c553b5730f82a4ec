// Package extract turns a document URI into plain text, dispatched by MIME
// type: Markdown, HTML, PDF and Google Docs.
package extract

import (
	"context"
)

// Content is the result of extracting text from a document.
type Content struct {
	Text     string
	Title    string
	MimeType string
	Extra    map[string]string
}

// Extractor fetches/reads a document by URI and extracts its text.
type Extractor interface {
	Extract(ctx context.Context, uri string) (*Content, error)
}
