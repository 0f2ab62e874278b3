package store

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestServer(t *testing.T, s *Store) int64 {
	t.Helper()
	id, err := s.AddServer("test", "http://example.com", "u", "p", 8080)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestAddAndListServers(t *testing.T) {
	s := newTestStore(t)
	id := addTestServer(t, s)
	servers, err := s.ActiveServers()
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 1 || servers[0].ID != id || servers[0].Port != 8080 {
		t.Fatalf("ActiveServers = %+v", servers)
	}
	srv, err := s.ServerByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if srv.Name != "test" || srv.Status != "active" {
		t.Fatalf("ServerByID = %+v", srv)
	}
	// Duplicate names are rejected by the schema.
	if _, err := s.AddServer("test", "http://other.example", "u", "p", 80); err == nil {
		t.Fatal("duplicate server name accepted")
	}
}

func TestCategoryLifecycle(t *testing.T) {
	s := newTestStore(t)
	srvID := addTestServer(t, s)

	cats := []Category{
		{ServerID: srvID, CategoryID: 10, Name: "Movies", ContentType: ContentVOD},
		{ServerID: srvID, CategoryID: 11, Name: "Action", ContentType: ContentVOD,
			ParentID: sql.NullInt64{Int64: 10, Valid: true}},
		{ServerID: srvID, CategoryID: 10, Name: "News", ContentType: ContentLive},
	}
	n, err := s.InsertCategories(cats)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("inserted %d, want 3", n)
	}

	// Same remote id is distinct per content type.
	for _, tc := range []struct {
		id   int64
		ct   ContentType
		want bool
	}{
		{10, ContentVOD, true},
		{10, ContentLive, true},
		{10, ContentSeries, false},
		{99, ContentVOD, false},
	} {
		got, err := s.CategoryExists(srvID, tc.id, tc.ct)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("CategoryExists(%d, %s) = %v, want %v", tc.id, tc.ct, got, tc.want)
		}
	}

	m, err := s.CategoryMapping(srvID, ContentVOD)
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 {
		t.Fatalf("vod mapping has %d entries, want 2", len(m))
	}
	if _, ok := m[10]; !ok {
		t.Fatal("remote id 10 missing from mapping")
	}
}

func TestLiveInsertAndExists(t *testing.T) {
	s := newTestStore(t)
	srvID := addTestServer(t, s)
	n, err := s.InsertLiveChannels([]LiveChannel{
		{ServerID: srvID, CategoryID: DefaultCategoryID, StreamID: 100, Name: "CH1"},
		{ServerID: srvID, CategoryID: DefaultCategoryID, StreamID: 101, Name: "CH2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("inserted %d, want 2", n)
	}
	exists, err := s.LiveExists(srvID, 100)
	if err != nil || !exists {
		t.Fatalf("LiveExists(100) = %v, %v", exists, err)
	}
	exists, err = s.LiveExists(srvID, 999)
	if err != nil || exists {
		t.Fatalf("LiveExists(999) = %v, %v", exists, err)
	}
	// Same remote id on another server is a different row.
	other := int64(0)
	if other, err = s.AddServer("other", "http://two.example", "u", "p", 80); err != nil {
		t.Fatal(err)
	}
	if exists, _ := s.LiveExists(other, 100); exists {
		t.Fatal("stream id leaked across servers")
	}
}

func TestVODEnrichmentFlow(t *testing.T) {
	s := newTestStore(t)
	srvID := addTestServer(t, s)
	if _, err := s.InsertVODTitles([]VODTitle{
		{ServerID: srvID, CategoryID: DefaultCategoryID, StreamID: 7, Name: "Movie (1999)"},
	}); err != nil {
		t.Fatal(err)
	}
	refs, err := s.VODMissingMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].StreamID != 7 {
		t.Fatalf("VODMissingMetadata = %+v", refs)
	}
	affected, err := s.UpdateVODMetadata(srvID, 7, VODMetadata{
		TMDBID: "603", Plot: "Neo wakes up", DurationSecs: 8160, Duration: "02:16:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}
	refs, err = s.VODMissingMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Fatalf("enriched title still reported missing: %+v", refs)
	}
	// A vanished row is 0 affected, not an error.
	affected, err = s.UpdateVODMetadata(srvID, 9999, VODMetadata{TMDBID: "1"})
	if err != nil || affected != 0 {
		t.Fatalf("update of missing row: affected=%d err=%v", affected, err)
	}
}

func TestSeriesAndEpisodes(t *testing.T) {
	s := newTestStore(t)
	srvID := addTestServer(t, s)
	if _, err := s.InsertSeries([]Series{
		{ServerID: srvID, CategoryID: DefaultCategoryID, SeriesID: 5, Name: "Show", LastModified: "1700000000"},
		{ServerID: srvID, CategoryID: DefaultCategoryID, SeriesID: 6, Name: "Other"},
	}); err != nil {
		t.Fatal(err)
	}
	refs, err := s.AllSeries()
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("AllSeries = %+v", refs)
	}
	var withMarker SeriesRef
	for _, r := range refs {
		if r.SeriesID == 5 {
			withMarker = r
		}
	}
	if withMarker.LastModified != "1700000000" {
		t.Fatalf("last_modified not surfaced: %+v", withMarker)
	}

	if affected, err := s.UpdateSeriesMetadata(srvID, 5, SeriesMetadata{
		TMDBID: "42", Rating5Based: 4.5, CategoryID: DefaultCategoryID,
	}); err != nil || affected != 1 {
		t.Fatalf("UpdateSeriesMetadata: affected=%d err=%v", affected, err)
	}

	n, err := s.InsertEpisodes([]Episode{
		{ServerID: srvID, SeriesID: 5, SeasonNum: 1, EpisodeID: 501, Title: "Pilot", EpisodeNum: 1, Season: 1},
		{ServerID: srvID, SeriesID: 5, SeasonNum: 1, EpisodeID: 502, Title: "Two", EpisodeNum: 2, Season: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("inserted %d episodes, want 2", n)
	}
	if exists, _ := s.EpisodeExists(srvID, 501); !exists {
		t.Fatal("EpisodeExists(501) = false")
	}
	if exists, _ := s.EpisodeExists(srvID, 999); exists {
		t.Fatal("EpisodeExists(999) = true")
	}
}

func TestReplaceEPG(t *testing.T) {
	s := newTestStore(t)
	first := []EpgEntry{
		{ChannelID: "ch1", StartTime: "2024-01-01 20:00:00", StopTime: "2024-01-01 21:00:00", Title: "News"},
		{ChannelID: "ch1", StartTime: "2024-01-01 21:00:00", Title: "Film"},
		// Exact duplicate tuple collapses via the unique constraint.
		{ChannelID: "ch1", StartTime: "2024-01-01 20:00:00", Title: "News"},
	}
	n, err := s.ReplaceEPG(first)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("inserted %d, want 2 (duplicate collapsed)", n)
	}
	if count, _ := s.EpgCount(); count != 2 {
		t.Fatalf("EpgCount = %d, want 2", count)
	}
	// A replace fully supersedes the previous guide.
	n, err = s.ReplaceEPG([]EpgEntry{
		{ChannelID: "ch2", StartTime: "2024-01-02 08:00:00", Title: "Morning"},
	})
	if err != nil || n != 1 {
		t.Fatalf("second replace: n=%d err=%v", n, err)
	}
	if count, _ := s.EpgCount(); count != 1 {
		t.Fatalf("EpgCount after replace = %d, want 1", count)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	srvID := addTestServer(t, s)
	if _, err := s.InsertCategories([]Category{
		{ServerID: srvID, CategoryID: 1, Name: "Movies", ContentType: ContentVOD},
	}); err != nil {
		t.Fatal(err)
	}
	m, err := s.CategoryMapping(srvID, ContentVOD)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertVODTitles([]VODTitle{
		{ServerID: srvID, CategoryID: m[1], StreamID: 1, Name: "Visible"},
		{ServerID: srvID, CategoryID: DefaultCategoryID, StreamID: 2, Name: "Unmapped"},
	}); err != nil {
		t.Fatal(err)
	}
	st, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Servers != 1 || st.Categories != 1 || st.TotalMovies != 2 {
		t.Fatalf("Stats = %+v", st)
	}
	// Only the title in a real (visible) category counts as visible.
	if st.VisibleMovies != 1 {
		t.Fatalf("VisibleMovies = %d, want 1", st.VisibleMovies)
	}
}
