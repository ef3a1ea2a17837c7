package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/trogers1052/options-monitor/internal/csvparse"
	"github.com/trogers1052/options-monitor/internal/models"
)

// RowSource produces the decoded rows of one project
type RowSource interface {
	// Key identifies the data location, it is used as the cache key
	Key(p models.Project) string
	Rows(ctx context.Context, p models.Project) ([]models.OptionRow, error)
}

// Fetcher retrieves the raw CSV text of a project
type Fetcher interface {
	Location(p models.Project) string
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// CSVSource reads rows from CSV text obtained through a Fetcher
type CSVSource struct {
	fetcher Fetcher
	policy  csvparse.Policy
}

// NewCSVSource creates a CSVSource
func NewCSVSource(fetcher Fetcher, policy csvparse.Policy) *CSVSource {
	return &CSVSource{fetcher: fetcher, policy: policy}
}

// Key returns the fetch location of the project's CSV
func (s *CSVSource) Key(p models.Project) string {
	return s.fetcher.Location(p)
}

// Rows fetches and parses the project's CSV
func (s *CSVSource) Rows(ctx context.Context, p models.Project) ([]models.OptionRow, error) {
	location := s.fetcher.Location(p)
	body, err := s.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
	}

	rows, err := csvparse.ParseRows(string(body), s.policy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", location, err)
	}
	return rows, nil
}

// HTTPFetcher downloads project data from a static site laid out as
// {base}/projects/{name}/data/{file}
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client gets a 30 second timeout.
func NewHTTPFetcher(client *http.Client, baseURL string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Location returns the URL of the project's data file
func (f *HTTPFetcher) Location(p models.Project) string {
	return f.baseURL + "/projects/" + p.Name + "/data/" + p.DataFile
}

// Fetch downloads location. Any non-2xx status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// FileFetcher reads project data from a local directory with the same layout
// as the static site
type FileFetcher struct {
	root string
}

// NewFileFetcher creates a FileFetcher rooted at dir
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{root: dir}
}

// Location returns the path of the project's data file
func (f *FileFetcher) Location(p models.Project) string {
	return filepath.Join(f.root, "projects", p.Name, "data", p.DataFile)
}

// Fetch reads the file at location
func (f *FileFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	return os.ReadFile(location)
}
