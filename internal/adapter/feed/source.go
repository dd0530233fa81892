// Package feed loads the station status CSV from a URL or a local file.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/fleet-map/internal/domain"
)

// Snapshot is one parsed copy of the feed.
type Snapshot struct {
	Rows     []domain.Row
	DataAsOf string // upstream export time, if the feed carries one
	Source   string
}

// Loader fetches and parses the feed.
type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

// HTTPSource fetches the feed over HTTP. Each Load is a single attempt.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource creates a source for url with a per-request timeout.
func NewHTTPSource(url string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (s *HTTPSource) Load(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Snapshot{}, fmt.Errorf("feed error: status %d: %s", resp.StatusCode, body)
	}

	rows, err := ParseCSV(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse feed: %w", err)
	}
	s.logger.Debug("feed fetched", "url", s.url, "rows", len(rows))

	return Snapshot{Rows: rows, DataAsOf: dataAsOf(rows), Source: s.url}, nil
}

// FileSource reads the feed from a local path.
type FileSource struct {
	path string
}

// NewFileSource creates a source for a local CSV file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the watched file path.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Load(_ context.Context) (Snapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	rows, err := ParseCSV(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse feed: %w", err)
	}
	return Snapshot{Rows: rows, DataAsOf: dataAsOf(rows), Source: s.path}, nil
}
