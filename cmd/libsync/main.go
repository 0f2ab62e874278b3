// Command libsync: incremental catalog synchronization for Xtream providers.
//
//	run         Full pass: sync listings, enrich metadata, import the guide. -interval repeats forever. For systemd.
//	sync        Sync categories + live/vod/series listings only
//	enrich      Enrich vod + series metadata only (fills columns sync left empty)
//	epg         Import the XMLTV programme guide only
//	add-server  Register a provider: add-server -name X -url U -user A -pass B [-port N]
//	stats       Print catalog and cache statistics
//	clear-cache Purge expired response cache records (-all purges everything)
//	vacuum      Compact the sqlite database
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fynixtv/libsync/internal/config"
	"github.com/fynixtv/libsync/internal/enrich"
	"github.com/fynixtv/libsync/internal/epg"
	"github.com/fynixtv/libsync/internal/respcache"
	"github.com/fynixtv/libsync/internal/store"
	libsync "github.com/fynixtv/libsync/internal/sync"
)

func main() {
	log.SetFlags(log.LstdFlags)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	envFile := fs.String("env", ".env", "path to .env file (ignored when absent)")
	metricsAddr := fs.String("metrics", "", "prometheus listen address, e.g. :9105 (overrides LIBSYNC_METRICS_ADDR)")
	interval := fs.Duration("interval", 0, "repeat interval for run (overrides LIBSYNC_RUN_INTERVAL; 0 = once)")

	// add-server flags
	name := fs.String("name", "", "server name (add-server)")
	srvURL := fs.String("url", "", "server base URL (add-server)")
	user := fs.String("user", "", "account username (add-server)")
	pass := fs.String("pass", "", "account password (add-server)")
	port := fs.Int("port", 0, "server port, 0 = from URL or default (add-server)")

	// clear-cache flags
	purgeAll := fs.Bool("all", false, "purge every cache record, not just expired ones (clear-cache)")

	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	if err := config.LoadEnvFile(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load %s: %v", *envFile, err)
	}
	cfg := config.Load()
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *interval > 0 {
		cfg.RunInterval = *interval
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer st.Close()
	cache := respcache.New(cfg.CacheDir, cfg.CacheTTL)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := func(msg string) { log.Print(msg) }

	switch cmd {
	case "run":
		if err := runLoop(ctx, st, cache, cfg, progress); err != nil {
			log.Fatal(err)
		}
	case "sync":
		if err := doSync(ctx, st, cache, cfg, progress); err != nil {
			log.Fatal(err)
		}
	case "enrich":
		if err := doEnrich(ctx, st, cache, cfg, progress); err != nil {
			log.Fatal(err)
		}
	case "epg":
		if _, err := epg.New(st, cache, cfg, progress).Run(ctx); err != nil {
			log.Fatal(err)
		}
	case "add-server":
		if *name == "" || *srvURL == "" || *user == "" || *pass == "" {
			log.Fatal("add-server requires -name, -url, -user and -pass")
		}
		id, err := st.AddServer(*name, *srvURL, *user, *pass, *port)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("added server %q (id %d)\n", *name, id)
	case "stats":
		printStats(st, cache)
	case "clear-cache":
		if *purgeAll {
			if err := cache.PurgeAll(); err != nil {
				log.Fatal(err)
			}
			fmt.Println("cache cleared")
		} else {
			fmt.Printf("removed %d expired records\n", cache.PurgeExpired())
		}
	case "vacuum":
		if err := st.Vacuum(); err != nil {
			log.Fatal(err)
		}
		fmt.Println("database compacted")
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: libsync <run|sync|enrich|epg|add-server|stats|clear-cache|vacuum> [flags]")
	fmt.Fprintln(os.Stderr, "flags: -env FILE -metrics ADDR -interval DUR; add-server: -name -url -user -pass [-port]; clear-cache: [-all]")
}

// runLoop is the systemd entry point: one full pass, then repeat every
// RunInterval when one is configured.
func runLoop(ctx context.Context, st *store.Store, cache *respcache.Cache, cfg *config.Config, progress func(string)) error {
	for {
		if err := fullPass(ctx, st, cache, cfg, progress); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("run: %v", err)
		}
		if cfg.RunInterval <= 0 {
			return nil
		}
		log.Printf("run: next pass in %s", cfg.RunInterval)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.RunInterval):
		}
	}
}

func fullPass(ctx context.Context, st *store.Store, cache *respcache.Cache, cfg *config.Config, progress func(string)) error {
	if n := cache.PurgeExpired(); n > 0 {
		log.Printf("run: purged %d expired cache records", n)
	}
	if err := doSync(ctx, st, cache, cfg, progress); err != nil {
		return err
	}
	if err := doEnrich(ctx, st, cache, cfg, progress); err != nil {
		return err
	}
	if _, err := epg.New(st, cache, cfg, progress).Run(ctx); err != nil {
		// The catalog is already updated; a guide failure only means stale
		// programme data until the next pass.
		log.Printf("run: epg import: %v", err)
	}
	return nil
}

func doSync(ctx context.Context, st *store.Store, cache *respcache.Cache, cfg *config.Config, progress func(string)) error {
	results, err := libsync.New(st, cache, cfg, progress).Run(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		fmt.Printf("%s: categories %d/%d new, live %d/%d new, vod %d/%d new, series %d/%d new\n",
			r.Server.Name,
			r.Categories.Inserted, r.Categories.Downloaded,
			r.Live.Inserted, r.Live.Downloaded,
			r.VOD.Inserted, r.VOD.Downloaded,
			r.Series.Inserted, r.Series.Downloaded)
	}
	return nil
}

func doEnrich(ctx context.Context, st *store.Store, cache *respcache.Cache, cfg *config.Config, progress func(string)) error {
	en := enrich.New(st, cache, cfg, progress)
	if _, err := en.EnrichVOD(ctx); err != nil {
		return err
	}
	_, err := en.EnrichSeries(ctx)
	return err
}

func printStats(st *store.Store, cache *respcache.Cache) {
	dbStats, err := st.Stats()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("servers:        %d\n", dbStats.Servers)
	fmt.Printf("categories:     %d\n", dbStats.Categories)
	fmt.Printf("live channels:  %d\n", dbStats.TotalChannels)
	fmt.Printf("movies:         %d (%d visible)\n", dbStats.TotalMovies, dbStats.VisibleMovies)
	fmt.Printf("series:         %d (%d visible)\n", dbStats.TotalSeries, dbStats.VisibleSeries)
	fmt.Printf("episodes:       %d (%d visible)\n", dbStats.TotalEpisodes, dbStats.VisibleEpisodes)
	fmt.Printf("epg entries:    %d\n", dbStats.EpgEntries)
	cs := cache.Stats()
	fmt.Printf("cache records:  %d (%d valid, %d expired, %d bytes)\n",
		cs.TotalRecords, cs.ValidRecords, cs.ExpiredRecords, cs.TotalBytes)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("metrics: listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics: %v", err)
	}
}
