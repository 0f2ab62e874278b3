// Package sync drives the incremental catalog synchronization: per-server
// listing fetches (cache first, network second), category mapping, and
// insert-only persistence in fixed-size batches. Existing rows are never
// updated here; metadata enrichment owns that.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fynixtv/libsync/internal/config"
	"github.com/fynixtv/libsync/internal/metrics"
	"github.com/fynixtv/libsync/internal/respcache"
	"github.com/fynixtv/libsync/internal/store"
	"github.com/fynixtv/libsync/internal/xtream"
)

// Counts is one entity type's tally for a run. Downloaded counts everything
// the provider returned, Inserted what was new, Existing what was skipped.
type Counts struct {
	Downloaded int
	Inserted   int
	Existing   int
}

func (c *Counts) add(o Counts) {
	c.Downloaded += o.Downloaded
	c.Inserted += o.Inserted
	c.Existing += o.Existing
}

// ServerResult is the outcome of one server's sync pass.
type ServerResult struct {
	Server     store.Server
	Categories Counts
	Live       Counts
	VOD        Counts
	Series     Counts
	Err        error
}

// Synchronizer runs catalog sync passes over all active servers.
type Synchronizer struct {
	store    *store.Store
	cache    *respcache.Cache
	cfg      *config.Config
	progress func(string)
}

// New builds a Synchronizer. progress may be nil.
func New(st *store.Store, cache *respcache.Cache, cfg *config.Config, progress func(string)) *Synchronizer {
	if progress == nil {
		progress = func(string) {}
	}
	return &Synchronizer{store: st, cache: cache, cfg: cfg, progress: progress}
}

// Run syncs every active server in turn. A failing server never blocks the
// others; its error is recorded in its result.
func (s *Synchronizer) Run(ctx context.Context) ([]ServerResult, error) {
	servers, err := s.store.ActiveServers()
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, errors.New("sync: no active servers configured")
	}
	results := make([]ServerResult, 0, len(servers))
	for _, srv := range servers {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res := s.SyncServer(ctx, srv)
		if res.Err != nil {
			log.Printf("sync: server %s: %v", srv.Name, res.Err)
		}
		results = append(results, res)
	}
	return results, nil
}

// SyncServer runs the full pass for one server: categories first (so the
// category mapping exists), then live, VOD, and series listings.
func (s *Synchronizer) SyncServer(ctx context.Context, srv store.Server) ServerResult {
	res := ServerResult{Server: srv}
	se := &session{
		syn:    s,
		srv:    srv,
		client: xtream.New(srv.URL, srv.Username, srv.Password, srv.Port, s.cfg.RequestInterval),
	}
	var err error
	if res.Categories, err = se.syncCategories(ctx); err != nil {
		// Without categories the content passes would map everything to the
		// fallback bucket, so the server pass stops here.
		res.Err = fmt.Errorf("categories: %w", err)
		return res
	}
	// The content passes are independent: a broken live listing must not
	// cost the server its movies or series. Errors are collected, not fatal.
	var errs []error
	if res.Live, err = se.syncLive(ctx); err != nil {
		errs = append(errs, fmt.Errorf("live: %w", err))
	}
	if res.VOD, err = se.syncVOD(ctx); err != nil {
		errs = append(errs, fmt.Errorf("vod: %w", err))
	}
	if res.Series, err = se.syncSeries(ctx); err != nil {
		errs = append(errs, fmt.Errorf("series: %w", err))
	}
	res.Err = errors.Join(errs...)
	return res
}

// session carries the per-server state of one pass. The liveness probe runs
// lazily before the first network fetch; a run answered entirely from cache
// never touches the provider at all.
type session struct {
	syn    *Synchronizer
	srv    store.Server
	client *xtream.Client
	probed bool
}

// listing returns the raw JSON array for (scope, action), consulting the
// response cache first. Malformed bodies are reported and never cached.
func (se *session) listing(ctx context.Context, scope, action string, timeout timeoutKind) ([]byte, error) {
	key := respcache.Key(se.client.BaseURL, se.srv.Username, scope)
	if payload, ok := se.syn.cache.Get(scope, key); ok {
		metrics.CacheHits.Inc()
		se.syn.progress(fmt.Sprintf("%s: %s from cache", se.srv.Name, scope))
		return payload, nil
	}
	metrics.CacheMisses.Inc()
	if !se.probed {
		if err := se.client.Probe(ctx, se.syn.cfg.ProbeTimeout); err != nil {
			return nil, fmt.Errorf("probe: %w", err)
		}
		se.probed = true
	}
	u := se.client.PlayerAPIURL(action)
	body, err := se.client.FetchList(ctx, u, se.timeout(timeout))
	if err != nil {
		return nil, err
	}
	if err := se.syn.cache.Put(scope, key, body); err != nil {
		log.Printf("sync: cache %s for %s: %v", scope, se.srv.Name, err)
	}
	return body, nil
}

type timeoutKind int

const (
	listingTimeout timeoutKind = iota
	bulkTimeout
)

func (se *session) timeout(k timeoutKind) time.Duration {
	if k == bulkTimeout {
		return se.syn.cfg.BulkTimeout
	}
	return se.syn.cfg.ListingTimeout
}

func (se *session) batchSize() int {
	if n := se.syn.cfg.BatchSize; n > 0 {
		return n
	}
	return 1000
}
