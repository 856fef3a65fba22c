// Package input reads the HTML documents the parser works on: stdin, a URL,
// or the files of a directory. Pages not encoded as UTF-8 are transcoded
// using their declared or sniffed charset.
package input

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tabletojson/internal/metrics"

	"golang.org/x/net/html/charset"
)

// Input describes where HTML should come from.
type Input struct {
	// URL, if provided, is fetched via HTTP GET.
	URL string

	// Stdin is used when URL is empty. If nil, stdin reads as empty.
	Stdin io.Reader
}

// Loader fetches or reads HTML with a consistent timeout policy.
type Loader struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// DefaultUserAgent is sent with every HTTP request.
const DefaultUserAgent = "table2json/1.0"

// NewLoader creates a Loader. If client is nil, http.DefaultClient is used.
func NewLoader(client *http.Client, timeout time.Duration) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{
		client:    client,
		timeout:   timeout,
		userAgent: DefaultUserAgent,
	}
}

// WithUserAgent sets the User-Agent header. An empty ua keeps the current one.
func (l *Loader) WithUserAgent(ua string) *Loader {
	if ua != "" {
		l.userAgent = ua
	}
	return l
}

// Load returns the HTML source for either stdin (when input.URL is empty)
// or a fetched URL, decoded to UTF-8.
//
// On non-2xx HTTP responses, Load returns an error that includes the status
// code and up to 4KB of the response body.
func (l *Loader) Load(ctx context.Context, input Input) (string, error) {
	if strings.TrimSpace(input.URL) == "" {
		if input.Stdin == nil {
			return "", nil
		}
		b, err := io.ReadAll(input.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return Decode(b, "")
	}
	return l.fetch(ctx, input.URL)
}

func (l *Loader) fetch(ctx context.Context, url string) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	start := time.Now()
	resp, err := l.client.Do(req)
	reqDur := time.Since(start)
	if err != nil {
		metrics.RecordHTTP(0, reqDur, 0, 0)
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordHTTP(resp.StatusCode, reqDur, time.Since(start)-reqDur, int64(len(body)))
		return "", fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(resp.Body)
	metrics.RecordHTTP(resp.StatusCode, reqDur, time.Since(start)-reqDur, int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return Decode(b, resp.Header.Get("Content-Type"))
}

// Decode converts raw page bytes to a UTF-8 string. The charset comes from
// contentType when it names one, otherwise from a BOM or <meta> declaration
// in the first bytes, otherwise UTF-8 is assumed.
func Decode(b []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(b), contentType)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	return string(out), nil
}
