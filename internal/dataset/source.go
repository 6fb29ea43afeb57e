package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrSplitNotFound is returned when a split file does not exist at the source
var ErrSplitNotFound = errors.New("split not found")

// Source provides the dialogue file of each split
type Source interface {
	// Open returns the JSONL stream of split
	Open(ctx context.Context, split string) (io.ReadCloser, error)
	// Location describes where the split is read from
	Location(split string) string
}

// NewSource returns an HTTP source for http(s) locations and a directory
// source otherwise. Split files are named <split>.jsonl.
func NewSource(location string, fetcher *Fetcher) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return &httpSource{baseURL: strings.TrimSuffix(location, "/"), fetcher: fetcher}
	}
	return &dirSource{dir: expandHome(location)}
}

type dirSource struct {
	dir string
}

func (s *dirSource) Location(split string) string {
	return filepath.Join(s.dir, split+".jsonl")
}

func (s *dirSource) Open(_ context.Context, split string) (io.ReadCloser, error) {
	f, err := os.Open(s.Location(split))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", split, ErrSplitNotFound)
		}
		return nil, fmt.Errorf("open split: %w", err)
	}
	return f, nil
}

type httpSource struct {
	baseURL string
	fetcher *Fetcher
}

func (s *httpSource) Location(split string) string {
	return s.baseURL + "/" + split + ".jsonl"
}

func (s *httpSource) Open(ctx context.Context, split string) (io.ReadCloser, error) {
	result, err := s.fetcher.FetchWithRetry(ctx, s.Location(split))
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", split, ErrSplitNotFound)
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(result.Body)), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
