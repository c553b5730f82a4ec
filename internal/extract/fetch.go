package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// fetchOrRead returns the raw bytes at uri: an HTTP GET for http(s):// URIs
// (rejected unless webFetchEnabled), or a local file read otherwise. A
// leading "file://" scheme is stripped.
func fetchOrRead(ctx context.Context, uri string, webFetchEnabled bool, timeout time.Duration, userAgent string) ([]byte, string, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		if !webFetchEnabled {
			return nil, "", fmt.Errorf("web fetch is disabled in configuration")
		}
		return fetchHTTP(ctx, uri, timeout, userAgent)
	}

	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

func fetchHTTP(ctx context.Context, uri string, timeout time.Duration, userAgent string) ([]byte, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}
