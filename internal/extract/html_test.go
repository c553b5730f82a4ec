package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLExtractor_StripsScriptAndStyle(t *testing.T) {
	path := writeTempFile(t, "doc.html", `<html><head><title>Page Title</title><style>body{color:red}</style></head>
<body><script>alert('x')</script><p>Visible paragraph.</p></body></html>`)

	e := &HTMLExtractor{Timeout: time.Second}
	content, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Page Title", content.Title)
	assert.Contains(t, content.Text, "Visible paragraph.")
	assert.NotContains(t, content.Text, "alert")
	assert.NotContains(t, content.Text, "color:red")
}

func TestHTMLExtractor_HTTPFetch_RequiresWebFetchEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>remote</p></body></html>"))
	}))
	defer srv.Close()

	e := &HTMLExtractor{WebFetchEnabled: false, Timeout: time.Second}
	_, err := e.Extract(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestHTMLExtractor_HTTPFetch_Succeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>remote content</p></body></html>"))
	}))
	defer srv.Close()

	e := &HTMLExtractor{WebFetchEnabled: true, Timeout: 5 * time.Second, UserAgent: "test"}
	content, err := e.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, content.Text, "remote content")
}

func TestHTMLExtractor_ServerError_ReturnsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := &HTMLExtractor{WebFetchEnabled: true, Timeout: 5 * time.Second}
	_, err := e.Extract(context.Background(), srv.URL)
	require.Error(t, err)
}
