// Package epg imports the provider's XMLTV programme guide into the local
// store. The guide has no incremental form, so every import replaces the
// whole table; a failed fetch or parse leaves the previous guide in place.
package epg

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"golang.org/x/net/html/charset"

	"github.com/fynixtv/libsync/internal/config"
	"github.com/fynixtv/libsync/internal/httpclient"
	"github.com/fynixtv/libsync/internal/metrics"
	"github.com/fynixtv/libsync/internal/respcache"
	"github.com/fynixtv/libsync/internal/store"
	"github.com/fynixtv/libsync/internal/xtream"
)

// Importer fetches and stores the programme guide.
type Importer struct {
	store    *store.Store
	cache    *respcache.Cache
	cfg      *config.Config
	progress func(string)
}

// New builds an Importer. progress may be nil.
func New(st *store.Store, cache *respcache.Cache, cfg *config.Config, progress func(string)) *Importer {
	if progress == nil {
		progress = func(string) {}
	}
	return &Importer{store: st, cache: cache, cfg: cfg, progress: progress}
}

// Run imports the guide from the first active server. Only one server feeds
// the guide; channel ids are panel-global strings and mixing panels would
// collide them.
func (im *Importer) Run(ctx context.Context) (int, error) {
	servers, err := im.store.ActiveServers()
	if err != nil {
		return 0, err
	}
	if len(servers) == 0 {
		return 0, errors.New("epg: no active servers configured")
	}
	srv := servers[0]
	client := xtream.New(srv.URL, srv.Username, srv.Password, srv.Port, im.cfg.RequestInterval)
	raw, err := im.guideXML(ctx, client, srv)
	if err != nil {
		return 0, err
	}
	entries, err := parseGuide(raw)
	if err != nil {
		return 0, err
	}
	inserted, err := im.store.ReplaceEPG(entries)
	if err != nil {
		return 0, err
	}
	metrics.EpgEntries.Set(float64(inserted))
	im.progress(fmt.Sprintf("epg: %d entries parsed, %d stored", len(entries), inserted))
	return inserted, nil
}

// guideXML returns the raw XMLTV document, cache first. Before committing to
// the potentially large download, a HEAD request checks that the endpoint
// answers at all.
func (im *Importer) guideXML(ctx context.Context, client *xtream.Client, srv store.Server) ([]byte, error) {
	const scope = "epg"
	key := respcache.Key(client.BaseURL, srv.Username, scope)
	if payload, ok := im.cache.Get(scope, key); ok {
		metrics.CacheHits.Inc()
		return payload, nil
	}
	metrics.CacheMisses.Inc()
	u := client.GuideURL()
	if err := headOK(ctx, u); err != nil {
		return nil, err
	}
	raw, err := client.FetchRaw(ctx, u, im.cfg.GuideTimeout)
	if err != nil {
		return nil, err
	}
	if err := im.cache.Put(scope, key, raw); err != nil {
		log.Printf("epg: cache guide: %v", err)
	}
	return raw, nil
}

func headOK(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := httpclient.Default().Do(req)
	if err != nil {
		return fmt.Errorf("epg: guide probe: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("epg: guide probe: unexpected status %s", resp.Status)
	}
	return nil
}

type xmltvProgramme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Channel string `xml:"channel,attr"`
	Title   struct {
		Lang  string `xml:"lang,attr"`
		Value string `xml:",chardata"`
	} `xml:"title"`
	Desc     string `xml:"desc"`
	Category string `xml:"category"`
	Icon     struct {
		Src string `xml:"src,attr"`
	} `xml:"icon"`
}

// parseGuide decodes programme elements from an XMLTV document. Entries with
// unusable timestamps or a missing channel are skipped, not fatal: one broken
// programme should not lose the whole guide.
func parseGuide(raw []byte) ([]store.EpgEntry, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel
	var entries []store.EpgEntry
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if len(entries) > 0 {
				// Truncated guides still carry usable data.
				log.Printf("epg: guide decode stopped early: %v", err)
				break
			}
			return nil, fmt.Errorf("epg: decode guide: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "programme" {
			continue
		}
		var p xmltvProgramme
		if err := dec.DecodeElement(&p, &start); err != nil {
			log.Printf("epg: skip programme: %v", err)
			continue
		}
		if p.Channel == "" || p.Title.Value == "" {
			continue
		}
		startTime, err := ParseXMLTVTime(p.Start)
		if err != nil {
			continue
		}
		stopTime := ""
		if p.Stop != "" {
			if st, err := ParseXMLTVTime(p.Stop); err == nil {
				stopTime = st
			}
		}
		entries = append(entries, store.EpgEntry{
			ChannelID:   p.Channel,
			StartTime:   startTime,
			StopTime:    stopTime,
			Title:       p.Title.Value,
			Description: p.Desc,
			Lang:        p.Title.Lang,
			Category:    p.Category,
			Icon:        p.Icon.Src,
		})
	}
	return entries, nil
}
