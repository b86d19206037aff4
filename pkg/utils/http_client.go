package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// UserAgent is sent on every outbound registry and resolver request.
const UserAgent = "domain-mcp/1.0 (+https://github.com/vit0-9/domain_mcp)"

const maxBodyBytes = 4 << 20

// NewHTTPClient returns a client tuned for small JSON APIs (RDAP, DoH).
// The timeout bounds the whole request including body read.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// FetchResult encapsulates the results of an HTTP fetch operation.
type FetchResult struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	FinalURL   string // URL after all redirects
}

// FetchURL performs a GET with the given Accept header and returns the
// response regardless of status code. Only transport failures are errors.
func FetchURL(ctx context.Context, client *http.Client, targetURL, accept string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", targetURL, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", targetURL, err)
	}

	return &FetchResult{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Body:       bodyBytes,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}
