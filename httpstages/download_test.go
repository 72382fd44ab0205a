package httpstages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestDownload(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("archive"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "corpus", "csj.tar.gz")
	step := Download(nil, ts.URL, dest)
	if err := step(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "archive" {
		t.Errorf("body: got %q", got)
	}

	if err := step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("existing dest should not be fetched again, hits=%d", n)
	}
}

func TestDownload_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "csj.tar.gz")
	if err := Download(nil, ts.URL, dest)(context.Background()); err == nil {
		t.Fatal("expected error for 404")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed download left files: %v", entries)
	}
}

func TestDownload_Cancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(t.TempDir(), "a")
	if err := Download(ts.Client(), ts.URL, dest)(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("dest should not exist: %v", err)
	}
}

func TestExpectSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("archive"))
	good := hex.EncodeToString(sum[:])

	if err := ExpectSHA256(path, good)(context.Background()); err != nil {
		t.Errorf("matching digest: %v", err)
	}
	if err := ExpectSHA256(path, "00")(context.Background()); err == nil {
		t.Error("expected mismatch error")
	}
	if err := ExpectSHA256(path, "")(context.Background()); err != nil {
		t.Errorf("empty sum should accept: %v", err)
	}
}
