package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/negentropy-ai/engine/pkg/apperrors"
)

// Fetcher retrieves raw bytes and a content-type for a source_uri — the
// "fetch" pipeline stage.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (body []byte, contentType string, err error)
}

// HTTPFetcher fetches over HTTP(S) under a bounded per-call deadline
// (default 10s, the same as embedding and rerank calls).
type HTTPFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: http.DefaultClient, Timeout: 10 * time.Second}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", apperrors.NewInfrastructureError("content-fetch-failed", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", apperrors.NewInfrastructureError("content-fetch-failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", apperrors.NewInfrastructureError("content-fetch-failed",
			fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", apperrors.NewInfrastructureError("content-fetch-failed", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// ExtractText turns fetched bytes into plain text by content-type (the
// "extract" pipeline stage). HTML is reduced to its tag-stripped text;
// anything already text-like passes through; other types are rejected as
// unsupported rather than silently garbled.
func ExtractText(body []byte, contentType string) (string, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"):
		return stripHTML(string(body)), nil
	case strings.Contains(ct, "text/"), strings.Contains(ct, "application/json"), ct == "":
		return string(body), nil
	default:
		return "", apperrors.NewInfrastructureError("content-extraction-failed",
			fmt.Errorf("unsupported content-type %q", contentType))
	}
}

// stripHTML removes tags and collapses whitespace, a best-effort plain-text
// projection good enough for chunking and embedding; it does not attempt to
// be a full HTML parser.
func stripHTML(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	fields := strings.Fields(b.String())
	return strings.Join(fields, " ")
}
