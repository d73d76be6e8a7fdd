package kb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Source fetches raw document bytes by reference. The root document and every
// external reference are resolved against the same source.
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	String() string
}

// NewSource returns an HTTPSource for http(s) locations and a DirSource for
// everything else.
func NewSource(location string, timeout time.Duration) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location, timeout)
	}
	return DirSource{Dir: location}
}

// DirSource reads documents from a local data directory.
type DirSource struct {
	Dir string
}

func (s DirSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !filepath.IsLocal(ref) {
		return nil, fmt.Errorf("reference %q escapes the data directory", ref)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir, ref))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}
	return decompress(ref, data)
}

func (s DirSource) String() string { return s.Dir }

// HTTPSource fetches documents relative to a base URL.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	u := s.BaseURL + "/" + escapePath(ref)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "faultbook/0.1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s returned %d: %s", u, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u, err)
	}
	return decompress(ref, data)
}

func (s *HTTPSource) String() string { return s.BaseURL }

func escapePath(ref string) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// decompress inflates references stored as zstd (data/network.json.zst).
func decompress(ref string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(ref, ".zst") {
		return data, nil
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", ref, err)
	}
	return out, nil
}
