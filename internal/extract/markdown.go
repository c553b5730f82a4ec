package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	docerrors "github.com/localsearch/docsearch/internal/errors"
)

var (
	frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n(.*)$`)
	fmTitleRe     = regexp.MustCompile(`(?m)^title:\s*(.+)$`)
	h1Re          = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// MarkdownExtractor parses optional YAML frontmatter and falls back to the
// first H1 heading for a title.
type MarkdownExtractor struct {
	WebFetchEnabled bool
	Timeout         time.Duration
	UserAgent       string
}

var _ Extractor = (*MarkdownExtractor)(nil)

func (e *MarkdownExtractor) Extract(ctx context.Context, uri string) (*Content, error) {
	data, _, err := fetchOrRead(ctx, uri, e.WebFetchEnabled, e.Timeout, e.UserAgent)
	if err != nil {
		return nil, docerrors.Extraction(fmt.Sprintf("failed to extract Markdown content from %s", uri), err)
	}

	content := string(data)
	text := content
	var title string

	if m := frontmatterRe.FindStringSubmatch(content); m != nil {
		frontmatter, body := m[1], m[2]
		text = body
		if tm := fmTitleRe.FindStringSubmatch(frontmatter); tm != nil {
			title = strings.Trim(strings.TrimSpace(tm[1]), `"'`)
		}
	}

	if title == "" {
		if hm := h1Re.FindStringSubmatch(text); hm != nil {
			title = strings.TrimSpace(hm[1])
		}
	}

	return &Content{
		Text:     strings.TrimSpace(text),
		Title:    title,
		MimeType: "text/markdown",
		Extra:    map[string]string{},
	}, nil
}
