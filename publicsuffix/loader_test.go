package publicsuffix

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLoaderDownloadsMissingList(t *testing.T) {
	srv, hits := listServer(t, "com\n*.ck\n!www.ck\n", http.StatusOK)
	path := filepath.Join(t.TempDir(), "sub", "psl.dat")

	l := &Loader{URL: srv.URL, Path: path, Logger: discardLogger()}
	rs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, _ := rs.OrganizationalDomain("a.b.example.com"); got != "example.com" {
		t.Errorf("OrganizationalDomain = %q", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("local copy not written: %v", err)
	}

	// A fresh copy is not downloaded again.
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("downloads = %d, want 1", n)
	}
}

func TestLoaderRefreshesStaleList(t *testing.T) {
	srv, hits := listServer(t, "com\norg\n", http.StatusOK)
	path := filepath.Join(t.TempDir(), "psl.dat")
	if err := os.WriteFile(path, []byte("com\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Now().Add(30 * 24 * time.Hour)
	l := &Loader{URL: srv.URL, Path: path, Logger: discardLogger(), Now: func() time.Time { return now }}
	rs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("stale list was not downloaded")
	}
	if !rs.IsRule("org") {
		t.Error("new list not used")
	}
}

func TestLoaderKeepsStaleListOnFailure(t *testing.T) {
	srv, _ := listServer(t, "oops", http.StatusInternalServerError)
	path := filepath.Join(t.TempDir(), "psl.dat")
	if err := os.WriteFile(path, []byte("com\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Now().Add(30 * 24 * time.Hour)
	l := &Loader{URL: srv.URL, Path: path, Logger: discardLogger(), Now: func() time.Time { return now }}
	rs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !rs.IsRule("com") {
		t.Error("stale list not used")
	}
}

func TestLoaderRejectsUnparsableDownload(t *testing.T) {
	srv, _ := listServer(t, "foo.*.com\n", http.StatusOK)
	path := filepath.Join(t.TempDir(), "psl.dat")

	l := &Loader{URL: srv.URL, Path: path, Logger: discardLogger()}
	_, err := l.Load(context.Background())
	if !errors.Is(err, ErrSuffixData) {
		t.Fatalf("got %v, want ErrSuffixData", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("bad download was kept: %v", err)
	}
}

func TestLoaderNoListAvailable(t *testing.T) {
	srv, _ := listServer(t, "", http.StatusNotFound)
	l := &Loader{URL: srv.URL, Path: filepath.Join(t.TempDir(), "psl.dat"), Logger: discardLogger()}

	_, err := l.Load(context.Background())
	var sde *SuffixDataError
	if !errors.As(err, &sde) {
		t.Fatalf("got %v, want *SuffixDataError", err)
	}
	if sde.Err == nil {
		t.Error("cause not recorded")
	}
}

func TestStore(t *testing.T) {
	first, err := ParseString("com\n")
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(first)
	if s.Rules() != first {
		t.Fatal("Rules() does not return the initial set")
	}

	srv, _ := listServer(t, "com\nco.uk\n", http.StatusOK)
	l := &Loader{URL: srv.URL, Path: filepath.Join(t.TempDir(), "psl.dat"), Logger: discardLogger()}
	if err := s.Refresh(context.Background(), l); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.Rules() == first || !s.Rules().IsRule("co.uk") {
		t.Error("Refresh did not swap in the new set")
	}
	if first.IsRule("co.uk") {
		t.Error("earlier set was modified")
	}

	// A failed refresh keeps the current set.
	current := s.Rules()
	bad := &Loader{Path: "", Logger: discardLogger()}
	if err := s.Refresh(context.Background(), bad); err == nil {
		t.Error("expected error")
	}
	if s.Rules() != current {
		t.Error("failed refresh replaced the set")
	}
}

func TestLoaderRejectsOversizedDownload(t *testing.T) {
	defer func(n int64) { maxListSize = n }(maxListSize)
	maxListSize = 8

	// The first 8 bytes are a valid list on their own.
	srv, _ := listServer(t, "com\norg\nnet\n", http.StatusOK)
	path := filepath.Join(t.TempDir(), "psl.dat")

	l := &Loader{URL: srv.URL, Path: path, Logger: discardLogger()}
	_, err := l.Load(context.Background())
	var sde *SuffixDataError
	if !errors.As(err, &sde) {
		t.Fatalf("got %v, want *SuffixDataError", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("truncated download was kept: %v", err)
	}

	// Exactly at the limit is fine.
	srv, _ = listServer(t, "com\norg\n", http.StatusOK)
	l.URL = srv.URL
	if _, err := l.Load(context.Background()); err != nil {
		t.Errorf("Load at limit: %v", err)
	}
}

func TestStoreRunDefaultInterval(t *testing.T) {
	rs, err := ParseString("com\n")
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(rs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, &Loader{Path: filepath.Join(t.TempDir(), "psl.dat")}, 0, discardLogger())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.Rules() != rs {
		t.Error("Run replaced the set")
	}
}
