package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fxrate-service/internal/entity"
)

const maxBodySize = 4 << 20

// NewHTTPClient returns an http.Client bounded by timeout. A non-positive timeout falls back to 10s.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
		},
	}
}

// Get performs a GET request and returns the body of a 200 response.
func Get(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", entity.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", entity.ErrProviderUnavailable, resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body", entity.ErrProviderUnavailable)
	}

	return body, nil
}

// GetJSON performs a GET request and decodes the JSON body of a 200 response into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	body, err := Get(ctx, client, url, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", entity.ErrProviderUnavailable, err)
	}
	return nil
}
