package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxErrorBody limits how much of an error response is kept in the error
const maxErrorBody = 4096

// httpTransport is the JSON exchange shared by the HTTP backends
type httpTransport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// newHTTPTransport creates a transport. requestsPerSecond <= 0 disables pacing.
// Per-call deadlines come from the caller's context, so the client itself has
// no timeout.
func newHTTPTransport(baseURL, apiKey string, requestsPerSecond float64) *httpTransport {
	t := &httpTransport{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return t
}

// do sends in (if non-nil) as JSON and decodes the response into out.
// Every failure is returned classified.
func (t *httpTransport) do(ctx context.Context, op, method, path string, in, out any) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return TransportError(ctx, op, err)
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return Permanent(op, fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return Permanent(op, fmt.Errorf("create request: %w", err))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return TransportError(ctx, op, fmt.Errorf("api call: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return StatusError(op, resp.StatusCode, string(bytes.TrimSpace(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return TransportError(ctx, op, err)
		}
		// A truncated or garbled body is usually a dropped connection
		return Transient(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (t *httpTransport) close() {
	t.httpClient.CloseIdleConnections()
}

// waitTimeout is used for readiness probes, which have no phase timeout
const waitTimeout = 30 * time.Second
