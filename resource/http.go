package resource

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds a single fetch by an HTTP source whose client
// has no timeout of its own.
const DefaultHTTPTimeout = 30 * time.Second

type httpSource struct {
	base   *url.URL
	client *http.Client
}

// HTTP returns a source that fetches resources below base over HTTP(S).
// A 404 or 410 response means the resource is absent; other non-2xx
// statuses are read failures. A nil client uses http.DefaultClient.
func HTTP(base string, client *http.Client) (Source, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("resource: http source: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("resource: http source: unsupported scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &httpSource{base: u, client: client}, nil
}

// IsURL reports whether a search path names an HTTP(S) location.
func IsURL(path string) bool {
	lower := strings.ToLower(strings.TrimSpace(path))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (s *httpSource) Name() string        { return s.base.String() }
func (s *httpSource) Fingerprint() string { return "http:" + s.base.String() }

func (s *httpSource) ReadFile(p string) ([]byte, error) {
	if !fs.ValidPath(p) {
		return nil, fs.ErrNotExist
	}
	ref, err := url.Parse(p)
	if err != nil {
		return nil, fs.ErrNotExist
	}
	target := s.base.ResolveReference(ref)

	ctx := context.Background()
	if s.client.Timeout == 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHTTPTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fs.ErrNotExist
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
