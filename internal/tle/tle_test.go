package tle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const issTLE = "ISS (ZARYA)\n" +
	"1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005\n" +
	"2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09\n"

func TestParseISS(t *testing.T) {
	sets, err := Parse(strings.NewReader(issTLE), testLogger)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("got %d sets, want 1", len(sets))
	}

	s := sets[0]
	if s.NORADID != 25544 || s.Name != "ISS (ZARYA)" {
		t.Errorf("set = %d %q", s.NORADID, s.Name)
	}
	want := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	if !s.Epoch.Equal(want) {
		t.Errorf("epoch = %v, want %v", s.Epoch, want)
	}
	if s.Age(want.Add(36*time.Hour)) != 36*time.Hour {
		t.Errorf("age = %v, want 36h", s.Age(want.Add(36*time.Hour)))
	}
}

func TestParseSkipsMalformed(t *testing.T) {
	input := "GARBAGE\nnot a tle line\n" + issTLE +
		"BAD ID\n1 ABCDEU 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005\n2 ABCDE  51.6400\n"

	sets, err := Parse(strings.NewReader(input), testLogger)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(sets) != 1 || sets[0].NORADID != 25544 {
		t.Fatalf("sets = %+v, want only the ISS", sets)
	}

	if _, ok := Find(sets, 25544); !ok {
		t.Error("Find(25544) should succeed")
	}
	if _, ok := Find(sets, 44713); ok {
		t.Error("Find(44713) should fail")
	}
}

func TestParseEpochCentury(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"57001.0", 1957},
		{"99001.0", 1999},
		{"00001.0", 2000},
		{"56001.0", 2056},
	}
	for _, tt := range tests {
		got, err := parseEpoch(tt.in)
		if err != nil {
			t.Fatalf("parseEpoch(%q): %v", tt.in, err)
		}
		if got.Year() != tt.want {
			t.Errorf("parseEpoch(%q) year = %d, want %d", tt.in, got.Year(), tt.want)
		}
	}
	if _, err := parseEpoch("24"); err == nil {
		t.Error("expected error for short epoch")
	}
}

func TestFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	data, err := NewFetcher(server.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != issTLE {
		t.Errorf("body mismatch: got %d bytes, want %d", len(data), len(issTLE))
	}
}

func TestFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	if _, err := NewFetcher(server.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 403 response, got nil")
	}
}

func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := strings.Repeat("A", 64*1024)
		for i := 0; i < 20; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	_, err := NewFetcher(server.URL).Fetch(context.Background())
	if err == nil || !strings.Contains(err.Error(), "byte limit") {
		t.Fatalf("expected byte limit error, got %v", err)
	}
}

func TestFetcherDefaultURL(t *testing.T) {
	if got := NewFetcher("").SourceURL(); got != DefaultSourceURL {
		t.Errorf("source = %q, want %q", got, DefaultSourceURL)
	}
}

func TestCacheWriteLoadPrune(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tle")
	c := NewCache(dir, 2)

	if _, _, err := c.LoadLatest(); !errors.Is(err, ErrNoCache) {
		t.Fatalf("empty cache err = %v, want ErrNoCache", err)
	}

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		if err := c.Write([]byte{byte('a' + i)}, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("cache holds %d files, want 2 after prune", len(entries))
	}

	data, ts, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if string(data) != "c" {
		t.Errorf("latest data = %q, want c", data)
	}
	if !ts.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("latest ts = %v", ts)
	}
}
