package epg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fynixtv/libsync/internal/config"
	"github.com/fynixtv/libsync/internal/respcache"
	"github.com/fynixtv/libsync/internal/store"
)

func TestParseXMLTVTime(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"20240131203000 +0000", "2024-01-31 20:30:00", false},
		{"20240131203000", "2024-01-31 20:30:00", false},
		{"20240131213000 +0100", "2024-01-31 20:30:00", false},
		{"20240131153000 -0500", "2024-01-31 20:30:00", false},
		{"20240131203000+0000", "2024-01-31 20:30:00", false},
		{"2024-01-31 20:30", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseXMLTVTime(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseXMLTVTime(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseXMLTVTime(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestXMLTVTimeRoundTrip(t *testing.T) {
	wire := "20240131203000 +0000"
	norm, err := ParseXMLTVTime(wire)
	if err != nil {
		t.Fatal(err)
	}
	back, err := FormatXMLTVTime(norm)
	if err != nil {
		t.Fatal(err)
	}
	if back != wire {
		t.Fatalf("round trip %q -> %q -> %q", wire, norm, back)
	}
}

const sampleGuide = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="test">
  <channel id="ch.one"><display-name>One</display-name></channel>
  <programme start="20240131200000 +0000" stop="20240131210000 +0000" channel="ch.one">
    <title lang="en">Evening News</title>
    <desc>Headlines</desc>
    <category>News</category>
    <icon src="http://img.example/news.png"/>
  </programme>
  <programme start="20240131210000 +0000" channel="ch.one">
    <title>Late Film</title>
  </programme>
  <programme start="garbage" channel="ch.one">
    <title>Broken</title>
  </programme>
  <programme start="20240131220000 +0000" channel="">
    <title>No Channel</title>
  </programme>
</tv>`

func TestParseGuide(t *testing.T) {
	entries, err := parseGuide([]byte(sampleGuide))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("parsed %d entries, want 2 (broken ones skipped)", len(entries))
	}
	first := entries[0]
	if first.ChannelID != "ch.one" || first.Title != "Evening News" ||
		first.StartTime != "2024-01-31 20:00:00" || first.StopTime != "2024-01-31 21:00:00" {
		t.Fatalf("first entry = %+v", first)
	}
	if first.Description != "Headlines" || first.Category != "News" ||
		first.Icon != "http://img.example/news.png" || first.Lang != "en" {
		t.Fatalf("first entry details = %+v", first)
	}
	if entries[1].StopTime != "" {
		t.Fatalf("missing stop should stay empty, got %q", entries[1].StopTime)
	}
}

func TestParseGuideRejectsGarbage(t *testing.T) {
	if _, err := parseGuide([]byte("this is not xml <<<")); err == nil {
		t.Fatal("expected error for unparseable guide")
	}
}

func newTestImporter(t *testing.T, handler http.Handler) (*Importer, *store.Store, *int64) {
	t.Helper()
	var requests int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	st, err := store.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if _, err := st.AddServer("panel", ts.URL, "u", "p", 80); err != nil {
		t.Fatal(err)
	}
	cfg := config.Load()
	cfg.RequestInterval = 0
	im := New(st, respcache.New(t.TempDir(), time.Hour), cfg, nil)
	return im, st, &requests
}

func TestImporterRun(t *testing.T) {
	im, st, _ := newTestImporter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleGuide))
	}))
	n, err := im.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("stored %d entries, want 2", n)
	}
	if count, _ := st.EpgCount(); count != 2 {
		t.Fatalf("EpgCount = %d", count)
	}

	// Second run inside the TTL is served from cache.
	if _, err := im.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if count, _ := st.EpgCount(); count != 2 {
		t.Fatal("cached re-import changed the row count")
	}
}

func TestImporterFailedFetchPreservesGuide(t *testing.T) {
	var failing atomic.Bool
	im, st, _ := newTestImporter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(sampleGuide))
	}))
	if _, err := im.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	failing.Store(true)
	// Expire the cache so the importer is forced back to the network.
	imStale := New(st, respcache.New(t.TempDir(), time.Hour), config.Load(), nil)
	if _, err := imStale.Run(context.Background()); err == nil {
		t.Fatal("expected failure from 404 guide endpoint")
	}
	if count, _ := st.EpgCount(); count != 2 {
		t.Fatalf("failed import disturbed the guide: %d rows", count)
	}
}

func TestImporterNoServers(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	im := New(st, respcache.New(t.TempDir(), time.Hour), config.Load(), nil)
	if _, err := im.Run(context.Background()); err == nil {
		t.Fatal("expected error with no servers")
	}
}
