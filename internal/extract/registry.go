package extract

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoExtractor indicates the MIME type/URI has no matching Extractor.
// Callers treat this as a skip, not a failure.
var ErrNoExtractor = errors.New("no extractor for this document")

// Config controls the shared fetch behavior of every extractor in a Registry.
type Config struct {
	WebFetchEnabled bool
	Timeout         time.Duration
	UserAgent       string
}

// Registry dispatches to the right Extractor by MIME type or URI shape.
type Registry struct {
	markdown *MarkdownExtractor
	html     *HTMLExtractor
	pdf      *PDFExtractor
	gdoc     *GoogleDocExtractor
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "docsearch/1.0"
	}
	return &Registry{
		markdown: &MarkdownExtractor{WebFetchEnabled: cfg.WebFetchEnabled, Timeout: cfg.Timeout, UserAgent: cfg.UserAgent},
		html:     &HTMLExtractor{WebFetchEnabled: cfg.WebFetchEnabled, Timeout: cfg.Timeout, UserAgent: cfg.UserAgent},
		pdf:      &PDFExtractor{WebFetchEnabled: cfg.WebFetchEnabled, Timeout: cfg.Timeout, UserAgent: cfg.UserAgent},
		gdoc:     &GoogleDocExtractor{WebFetchEnabled: cfg.WebFetchEnabled, Timeout: cfg.Timeout, UserAgent: cfg.UserAgent},
	}
}

// Extract picks an Extractor by MIME type (falling back to URI shape for
// Google Docs and file extensions) and runs it.
func (r *Registry) Extract(ctx context.Context, uri, mimeType string) (*Content, error) {
	switch {
	case strings.Contains(uri, "docs.google.com"):
		return r.gdoc.Extract(ctx, uri)
	case mimeType == "text/markdown" || strings.HasSuffix(uri, ".md") || strings.HasSuffix(uri, ".markdown"):
		return r.markdown.Extract(ctx, uri)
	case mimeType == "application/pdf" || strings.HasSuffix(uri, ".pdf"):
		return r.pdf.Extract(ctx, uri)
	case mimeType == "text/html" || strings.HasSuffix(uri, ".html") || strings.HasSuffix(uri, ".htm"):
		return r.html.Extract(ctx, uri)
	default:
		return nil, ErrNoExtractor
	}
}
