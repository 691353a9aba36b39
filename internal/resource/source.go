package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoDocument is returned by a Source when nothing exists at a path.
var ErrNoDocument = errors.New("no document at path")

// Source fetches raw documents by path. The provider walks candidate paths
// over a single Source, so implementations need no fallback logic.
type Source interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// HTTPSource reads documents relative to a base URL.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{base: u, client: &http.Client{Timeout: timeout}}, nil
}

func (s *HTTPSource) Get(ctx context.Context, path string) ([]byte, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "./"))
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	target := s.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("get %s: %w", target, ErrNoDocument)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", target, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// DirSource reads documents from a file system such as os.DirFS("data").
type DirSource struct {
	fsys fs.FS
}

func NewDirSource(fsys fs.FS) *DirSource {
	return &DirSource{fsys: fsys}
}

func (s *DirSource) Get(_ context.Context, path string) ([]byte, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(path, "./"), "/")
	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", name, ErrNoDocument)
	}
	return data, err
}
