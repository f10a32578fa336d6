package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound call made through DefaultClient.
const DefaultTimeout = 30 * time.Second

// UserAgent is sent on every outbound request.
const UserAgent = "finsheet/1.0"

// DefaultClient is used by Do when no client is given.
var DefaultClient = &http.Client{Timeout: DefaultTimeout}

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Do sends one request with the given client.
func Do(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body io.Reader) (io.ReadCloser, int, error) {
	if client == nil {
		client = DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp.Body, resp.StatusCode, nil
}

// PostJSON marshals payload, POSTs it and decodes a 2xx reply into dst.
// Non-2xx replies return *HTTPError with a truncated body.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, dst any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json", "Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	body, status, err := Do(ctx, client, http.MethodPost, url, h, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer body.Close()
	if status < 200 || status > 299 {
		b, _ := io.ReadAll(io.LimitReader(body, 512))
		return &HTTPError{Status: status, Body: string(bytes.TrimSpace(b))}
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
