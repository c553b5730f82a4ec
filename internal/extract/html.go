package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	docerrors "github.com/localsearch/docsearch/internal/errors"
)

// HTMLExtractor strips <script>/<style> and concatenates visible text,
// one line per non-empty text node (inline elements included).
type HTMLExtractor struct {
	WebFetchEnabled bool
	Timeout         time.Duration
	UserAgent       string
}

var _ Extractor = (*HTMLExtractor)(nil)

func (e *HTMLExtractor) Extract(ctx context.Context, uri string) (*Content, error) {
	data, contentType, err := fetchOrRead(ctx, uri, e.WebFetchEnabled, e.Timeout, e.UserAgent)
	if err != nil {
		return nil, docerrors.Extraction(fmt.Sprintf("failed to extract HTML content from %s", uri), err)
	}
	if contentType == "" {
		contentType = "text/html"
	}

	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, docerrors.Extraction(fmt.Sprintf("failed to parse HTML from %s", uri), err)
	}

	var lines []string
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return &Content{
		Text:     strings.Join(lines, "\n"),
		Title:    title,
		MimeType: contentType,
		Extra:    map[string]string{},
	}, nil
}
