package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	docerrors "github.com/localsearch/docsearch/internal/errors"
)

// GoogleDocExtractor handles docs.google.com URIs by delegating to an
// HTMLExtractor; any other URI is rejected.
type GoogleDocExtractor struct {
	WebFetchEnabled bool
	Timeout         time.Duration
	UserAgent       string
}

var _ Extractor = (*GoogleDocExtractor)(nil)

func (e *GoogleDocExtractor) Extract(ctx context.Context, uri string) (*Content, error) {
	if !strings.Contains(uri, "docs.google.com") {
		return nil, docerrors.Extraction(
			fmt.Sprintf("%s is not a Google Docs URI", uri), nil)
	}

	html := &HTMLExtractor{
		WebFetchEnabled: e.WebFetchEnabled,
		Timeout:         e.Timeout,
		UserAgent:       e.UserAgent,
	}
	content, err := html.Extract(ctx, uri)
	if err != nil {
		return nil, err
	}
	content.MimeType = "application/vnd.google-apps.document"
	return content, nil
}
