package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	docerrors "github.com/localsearch/docsearch/internal/errors"
)

// DefaultEmbeddingTimeout is the per-request timeout when the config does
// not override it.
const DefaultEmbeddingTimeout = 60 * time.Second

// HTTPEmbeddingProvider talks to an OpenAI-compatible /v1/embeddings
// endpoint: POST {model, input: [string]} -> {data: [{embedding, index}]}.
type HTTPEmbeddingProvider struct {
	client    *http.Client
	baseURL   string
	model     string
	dim       int
	timeout   time.Duration
	retry     RetryConfig
}

var _ EmbeddingProvider = (*HTTPEmbeddingProvider)(nil)

// EmbeddingProvider is the port the indexing and search pipelines embed
// text through.
type EmbeddingProvider interface {
	// EmbedTexts embeds a batch of texts, order-preserving: the i-th output
	// corresponds to the i-th input.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// NewHTTPEmbeddingProvider constructs a provider against baseURL with the
// given model/dim. A zero timeout uses DefaultEmbeddingTimeout.
func NewHTTPEmbeddingProvider(baseURL, model string, dim int, timeout time.Duration) *HTTPEmbeddingProvider {
	if timeout <= 0 {
		timeout = DefaultEmbeddingTimeout
	}
	return &HTTPEmbeddingProvider{
		client:  &http.Client{},
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		timeout: timeout,
		retry:   DefaultRetryConfig(),
	}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingDatum struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingsResponse struct {
	Data []embeddingDatum `json:"data"`
}

// EmbedTexts embeds texts in a single batch request, retrying transient
// failures with exponential backoff. All retries exhausted collapses to one
// BackendUnavailable error for the whole batch.
func (p *HTTPEmbeddingProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result [][]float32
	err := DownloadWithRetry(ctx, p.retry, func() error {
		embeddings, err := p.doRequest(ctx, texts)
		if err != nil {
			return err
		}
		result = embeddings
		return nil
	})
	if err != nil {
		return nil, docerrors.BackendUnavailable(fmt.Sprintf("embedding request failed after retries: %v", err), err)
	}
	return result, nil
}

func (p *HTTPEmbeddingProvider) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(embeddingsRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding endpoint unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response count mismatch: expected %d, got %d", len(texts), len(parsed.Data))
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (p *HTTPEmbeddingProvider) Dimensions() int {
	return p.dim
}

func (p *HTTPEmbeddingProvider) ModelName() string {
	return p.model
}
