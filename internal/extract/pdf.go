package extract

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	docerrors "github.com/localsearch/docsearch/internal/errors"
)

// PDFExtractor concatenates per-page text and records the page count as extra
// metadata.
type PDFExtractor struct {
	WebFetchEnabled bool
	Timeout         time.Duration
	UserAgent       string
}

var _ Extractor = (*PDFExtractor)(nil)

func (e *PDFExtractor) Extract(ctx context.Context, uri string) (*Content, error) {
	data, _, err := fetchOrRead(ctx, uri, e.WebFetchEnabled, e.Timeout, e.UserAgent)
	if err != nil {
		return nil, docerrors.Extraction(fmt.Sprintf("failed to extract PDF content from %s", uri), err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, docerrors.Extraction(fmt.Sprintf("failed to parse PDF from %s", uri), err)
	}

	pageCount := reader.NumPage()
	var parts []string
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, docerrors.Extraction(fmt.Sprintf("PDF extraction cancelled for %s", uri), ctx.Err())
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return &Content{
		Text:     strings.TrimSpace(strings.Join(parts, "\n\n")),
		Title:    "",
		MimeType: "application/pdf",
		Extra: map[string]string{
			"page_count": strconv.Itoa(pageCount),
		},
	}, nil
}
