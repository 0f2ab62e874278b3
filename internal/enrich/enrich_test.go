package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fynixtv/libsync/internal/config"
	"github.com/fynixtv/libsync/internal/respcache"
	"github.com/fynixtv/libsync/internal/store"
)

func newTestEnricher(t *testing.T, handler http.Handler) (*Enricher, *store.Store, int64, *int64) {
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
	srvID, err := st.AddServer("panel", ts.URL, "u", "p", 80)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Load()
	cfg.RequestInterval = 0
	e := New(st, respcache.New(t.TempDir(), time.Hour), cfg, nil)
	return e, st, srvID, &requests
}

func TestEnrichVODMergesMovieDataOverInfo(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "get_vod_info" {
			http.NotFound(w, r)
			return
		}
		// Both halves set plot; movie_data must win. duration arrives as a
		// clock string with no duration_secs.
		w.Write([]byte(`{
			"info": {"plot": "from info", "tmdb_id": "603", "duration": "01:02:03",
			         "genre": ["Action", "Sci-Fi"], "bitrate": "4500"},
			"movie_data": {"plot": "from movie_data", "releasedate": "1999-03-31"}
		}`))
	})
	e, st, srvID, _ := newTestEnricher(t, handler)
	if _, err := st.InsertVODTitles([]store.VODTitle{
		{ServerID: srvID, CategoryID: store.DefaultCategoryID, StreamID: 7, Name: "Movie"},
	}); err != nil {
		t.Fatal(err)
	}

	res, err := e.EnrichVOD(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Candidates != 1 || res.Updated != 1 || res.Failed != 0 {
		t.Fatalf("Result = %+v", res)
	}

	var plot, tmdb, genre, release, dur string
	var secs, bitrate int64
	err = st.DB().QueryRow(`
		SELECT plot, tmdb_id, genre, release_date, duration, duration_secs, bitrate
		FROM vod_streams WHERE stream_id = 7`).
		Scan(&plot, &tmdb, &genre, &release, &dur, &secs, &bitrate)
	if err != nil {
		t.Fatal(err)
	}
	if plot != "from movie_data" {
		t.Fatalf("plot = %q, movie_data should take precedence", plot)
	}
	if tmdb != "603" || genre != "Action, Sci-Fi" || release != "1999-03-31" {
		t.Fatalf("tmdb=%q genre=%q release=%q", tmdb, genre, release)
	}
	if secs != 3723 || dur != "01:02:03" || bitrate != 4500 {
		t.Fatalf("secs=%d dur=%q bitrate=%d", secs, dur, bitrate)
	}

	// Enriched rows leave the candidate set.
	res, err = e.EnrichVOD(context.Background())
	if err != nil || res.Candidates != 0 {
		t.Fatalf("second pass: %+v err=%v", res, err)
	}
}

func TestEnrichVODConcurrentMatchesSequential(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("vod_id")
		fmt.Fprintf(w, `{"info": {"tmdb_id": "tmdb-%s", "plot": "plot-%s"}, "movie_data": {}}`, id, id)
	})
	e, st, srvID, _ := newTestEnricher(t, handler)
	const n = 50
	titles := make([]store.VODTitle, 0, n)
	for i := 1; i <= n; i++ {
		titles = append(titles, store.VODTitle{
			ServerID: srvID, CategoryID: store.DefaultCategoryID,
			StreamID: int64(i), Name: "Movie " + strconv.Itoa(i),
		})
	}
	if _, err := st.InsertVODTitles(titles); err != nil {
		t.Fatal(err)
	}

	res, err := e.EnrichVOD(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != n || res.Failed != 0 {
		t.Fatalf("Result = %+v, want %d updated", res, n)
	}
	// Every row got its own payload, no cross-talk between workers.
	rows, err := st.DB().Query(`SELECT stream_id, tmdb_id FROM vod_streams ORDER BY stream_id`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	seen := 0
	for rows.Next() {
		var id int64
		var tmdb string
		if err := rows.Scan(&id, &tmdb); err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprintf("tmdb-%d", id); tmdb != want {
			t.Fatalf("stream %d has tmdb %q, want %q", id, tmdb, want)
		}
		seen++
	}
	if seen != n {
		t.Fatalf("scanned %d rows, want %d", seen, n)
	}
}

func TestEnrichVODPerItemFailureIsIsolated(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("vod_id") == "2" {
			w.Write([]byte(`not json at all`))
			return
		}
		w.Write([]byte(`{"info": {"tmdb_id": "ok"}, "movie_data": {}}`))
	})
	e, st, srvID, _ := newTestEnricher(t, handler)
	if _, err := st.InsertVODTitles([]store.VODTitle{
		{ServerID: srvID, CategoryID: store.DefaultCategoryID, StreamID: 1, Name: "Good"},
		{ServerID: srvID, CategoryID: store.DefaultCategoryID, StreamID: 2, Name: "Bad"},
		{ServerID: srvID, CategoryID: store.DefaultCategoryID, StreamID: 3, Name: "Good"},
	}); err != nil {
		t.Fatal(err)
	}
	res, err := e.EnrichVOD(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 2 || res.Failed != 1 {
		t.Fatalf("Result = %+v, want 2 updated / 1 failed", res)
	}
}

func seriesInfoBody(marker string) string {
	return `{
		"info": {"rating_5based": "4.5", "tmdb": "1399", "category_id": "4",
		         "backdrop_path": ["http://img.example/bd.jpg"], "episode_run_time": "55"},
		"episodes": {
			"1": [
				{"id": "501", "episode_num": 1, "title": "Pilot ` + marker + `", "season": 1,
				 "info": {"plot": "It begins", "duration": "00:55:00", "air_date": "2011-04-17"}},
				{"id": "502", "episode_num": 2, "title": "Two", "season": 1, "info": {}}
			]
		}
	}`
}

func TestEnrichSeriesUpdatesAndAddsEpisodes(t *testing.T) {
	version := int64(0)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(seriesInfoBody("v" + strconv.FormatInt(atomic.LoadInt64(&version), 10))))
	})
	e, st, srvID, requests := newTestEnricher(t, handler)
	if _, err := st.InsertSeries([]store.Series{
		{ServerID: srvID, CategoryID: store.DefaultCategoryID, SeriesID: 300,
			Name: "Show", LastModified: "1700000000"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertCategories([]store.Category{
		{ServerID: srvID, CategoryID: 4, Name: "Drama", ContentType: store.ContentSeries},
	}); err != nil {
		t.Fatal(err)
	}

	res, err := e.EnrichSeries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 1 || res.Failed != 0 {
		t.Fatalf("Result = %+v", res)
	}

	var rating float64
	var tmdb string
	var catID int64
	if err := st.DB().QueryRow(
		`SELECT rating_5based, tmdb_id, category_id FROM series WHERE series_id = 300`).
		Scan(&rating, &tmdb, &catID); err != nil {
		t.Fatal(err)
	}
	if rating != 4.5 || tmdb != "1399" {
		t.Fatalf("rating=%v tmdb=%q", rating, tmdb)
	}
	if catID == store.DefaultCategoryID {
		t.Fatal("remote category 4 was not mapped to its local row")
	}

	var epCount int
	if err := st.DB().QueryRow(`SELECT COUNT(id) FROM episodes`).Scan(&epCount); err != nil {
		t.Fatal(err)
	}
	if epCount != 2 {
		t.Fatalf("episodes = %d, want 2", epCount)
	}
	var title string
	if err := st.DB().QueryRow(`SELECT title FROM episodes WHERE episode_id = 501`).Scan(&title); err != nil {
		t.Fatal(err)
	}
	firstTitle := title

	// Second pass: cache is fresher than last_modified, so no new request,
	// and existing episode rows stay as first written.
	atomic.StoreInt64(&version, 1)
	before := atomic.LoadInt64(requests)
	if _, err := e.EnrichSeries(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt64(requests); n != before {
		t.Fatalf("second pass fetched %d times despite fresh cache", n-before)
	}
	if err := st.DB().QueryRow(`SELECT title FROM episodes WHERE episode_id = 501`).Scan(&title); err != nil {
		t.Fatal(err)
	}
	if title != firstTitle {
		t.Fatalf("episode title changed on re-enrich: %q -> %q", firstTitle, title)
	}
	if err := st.DB().QueryRow(`SELECT COUNT(id) FROM episodes`).Scan(&epCount); err != nil {
		t.Fatal(err)
	}
	if epCount != 2 {
		t.Fatalf("episodes after second pass = %d, want 2", epCount)
	}
}

func TestEnrichSeriesRefetchesWhenMarkerAdvances(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(seriesInfoBody("x")))
	})
	e, st, srvID, requests := newTestEnricher(t, handler)
	if _, err := st.InsertSeries([]store.Series{
		{ServerID: srvID, CategoryID: store.DefaultCategoryID, SeriesID: 300,
			Name: "Show", LastModified: "1700000000"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.EnrichSeries(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := atomic.LoadInt64(requests)

	// Provider bumps last_modified past the cached capture time.
	future := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
	if _, err := st.DB().Exec(
		`UPDATE series SET last_modified = ? WHERE series_id = 300`, future); err != nil {
		t.Fatal(err)
	}
	if _, err := e.EnrichSeries(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt64(requests); n == before {
		t.Fatal("stale cache was trusted after last_modified advanced")
	}
}
