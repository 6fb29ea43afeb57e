package dataset

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "train.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewSource(dir, nil)
	if got := src.Location("train"); got != filepath.Join(dir, "train.jsonl") {
		t.Errorf("unexpected location %s", got)
	}

	rc, err := src.Open(context.Background(), "train")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "{}\n" {
		t.Errorf("unexpected content %q", data)
	}

	if _, err := src.Open(context.Background(), "test"); !errors.Is(err, ErrSplitNotFound) {
		t.Errorf("expected ErrSplitNotFound, got %v", err)
	}
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/train.jsonl" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("{}\n"))
	}))
	defer server.Close()
	noSleep(t)

	src := NewSource(server.URL+"/data/", testFetcher())
	if got := src.Location("train"); got != server.URL+"/data/train.jsonl" {
		t.Errorf("unexpected location %s", got)
	}

	rc, err := src.Open(context.Background(), "train")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "{}\n" {
		t.Errorf("unexpected content %q", data)
	}

	if _, err := src.Open(context.Background(), "validation"); !errors.Is(err, ErrSplitNotFound) {
		t.Errorf("expected ErrSplitNotFound, got %v", err)
	}
}
