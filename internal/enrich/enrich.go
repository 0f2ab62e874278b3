// Package enrich fills the metadata columns left empty by the listing sync.
// Candidates are fanned out to a bounded worker pool; each item fetches the
// provider's detail payload (cache first), flattens it, and overwrites the
// row's enrichment columns. Per-item failures are logged and counted, never
// fatal to the run.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/fynixtv/libsync/internal/config"
	"github.com/fynixtv/libsync/internal/httpclient"
	"github.com/fynixtv/libsync/internal/respcache"
	"github.com/fynixtv/libsync/internal/store"
	"github.com/fynixtv/libsync/internal/xtream"
)

// Result tallies one enrichment run.
type Result struct {
	Candidates int
	Updated    int
	Failed     int
	Skipped    int // rows that vanished between candidate listing and update
}

// Enricher runs metadata enrichment passes.
type Enricher struct {
	store    *store.Store
	cache    *respcache.Cache
	cfg      *config.Config
	hosts    *httpclient.HostSemaphore
	progress func(string)

	mu      sync.Mutex
	clients map[int64]*xtream.Client
	servers map[int64]store.Server
}

// New builds an Enricher. progress may be nil.
func New(st *store.Store, cache *respcache.Cache, cfg *config.Config, progress func(string)) *Enricher {
	if progress == nil {
		progress = func(string) {}
	}
	workers := cfg.VODWorkers
	if cfg.SeriesWorkers > workers {
		workers = cfg.SeriesWorkers
	}
	return &Enricher{
		store:    st,
		cache:    cache,
		cfg:      cfg,
		hosts:    httpclient.NewHostSemaphore(workers),
		progress: progress,
		clients:  make(map[int64]*xtream.Client),
		servers:  make(map[int64]store.Server),
	}
}

// clientFor returns (and lazily builds) the API client for a server id.
func (e *Enricher) clientFor(serverID int64) (*xtream.Client, store.Server, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.clients[serverID]; ok {
		return c, e.servers[serverID], nil
	}
	srv, err := e.store.ServerByID(serverID)
	if err != nil {
		return nil, store.Server{}, err
	}
	c := xtream.New(srv.URL, srv.Username, srv.Password, srv.Port, e.cfg.RequestInterval)
	e.clients[serverID] = c
	e.servers[serverID] = srv
	return c, srv, nil
}

// detail returns the raw detail payload for one item, cache first. The cache
// key includes the remote id so every item has its own record.
func (e *Enricher) detail(ctx context.Context, client *xtream.Client, srv store.Server, scope string, remoteID int64, u string) ([]byte, error) {
	key := respcache.Key(client.BaseURL, srv.Username, scope, strconv.FormatInt(remoteID, 10))
	if payload, ok := e.cache.Get(scope, key); ok {
		return payload, nil
	}
	release := e.hosts.Acquire(client.BaseURL)
	body, err := client.FetchObject(ctx, u, e.cfg.DetailTimeout)
	release()
	if err != nil {
		return nil, err
	}
	if err := e.cache.Put(scope, key, body); err != nil {
		log.Printf("enrich: cache %s/%d: %v", scope, remoteID, err)
	}
	return body, nil
}

// runPool feeds jobs to n workers and waits for them all.
func runPool[T any](ctx context.Context, n int, jobs []T, work func(context.Context, T)) {
	if n < 1 {
		n = 1
	}
	ch := make(chan T)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				work(ctx, j)
			}
		}()
	}
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		ch <- j
	}
	close(ch)
	wg.Wait()
}

// fields is a flattened detail payload: every key decoded on demand with the
// provider's loose typing smoothed over.
type fields map[string]json.RawMessage

func (f fields) str(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var v xtream.FlexString
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v.String()
}

func (f fields) num(key string) int64 {
	raw, ok := f[key]
	if !ok {
		return 0
	}
	var v xtream.FlexID
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	return v.Int64()
}

func (f fields) float(key string) float64 {
	raw, ok := f[key]
	if !ok {
		return 0
	}
	var v xtream.FlexFloat
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	return v.Float64()
}

// merge overlays b onto a; b wins on key collisions.
func merge(a, b fields) fields {
	out := make(fields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func summarize(kind string, r Result) string {
	return fmt.Sprintf("%s enrichment: %d candidates, %d updated, %d failed, %d skipped",
		kind, r.Candidates, r.Updated, r.Failed, r.Skipped)
}
