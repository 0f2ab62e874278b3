package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fynixtv/libsync/internal/metrics"
	"github.com/fynixtv/libsync/internal/normalize"
	"github.com/fynixtv/libsync/internal/respcache"
	"github.com/fynixtv/libsync/internal/store"
	"github.com/fynixtv/libsync/internal/xtream"
)

type apiEpisode struct {
	ID                 xtream.FlexID     `json:"id"`
	EpisodeNum         xtream.FlexID     `json:"episode_num"`
	Title              xtream.FlexString `json:"title"`
	ContainerExtension xtream.FlexString `json:"container_extension"`
	CustomSID          xtream.FlexString `json:"custom_sid"`
	Added              xtream.FlexString `json:"added"`
	Season             xtream.FlexID     `json:"season"`
	DirectSource       xtream.FlexString `json:"direct_source"`
	Info               fields            `json:"info"`
}

type seriesInfoPayload struct {
	Info     fields                  `json:"info"`
	Episodes map[string][]apiEpisode `json:"episodes"`
}

// EnrichSeries refreshes every series row and adds newly published episodes.
// Unlike VOD, all series are candidates on every run; the per-item cache is
// trusted only when it was captured after the row's last_modified marker, so
// a series the provider updated is re-fetched even inside the TTL window.
func (e *Enricher) EnrichSeries(ctx context.Context) (Result, error) {
	refs, err := e.store.AllSeries()
	if err != nil {
		return Result{}, err
	}
	var updated, failed, skipped int64
	runPool(ctx, e.cfg.SeriesWorkers, refs, func(ctx context.Context, ref store.SeriesRef) {
		switch err := e.enrichOneSeries(ctx, ref); {
		case err == nil:
			atomic.AddInt64(&updated, 1)
			metrics.EnrichUpdates.WithLabelValues("series").Inc()
		case err == errRowGone:
			atomic.AddInt64(&skipped, 1)
		default:
			atomic.AddInt64(&failed, 1)
			metrics.EnrichFailures.WithLabelValues("series").Inc()
			log.Printf("enrich: series %d/%d: %v", ref.ServerID, ref.SeriesID, err)
		}
	})
	res := Result{
		Candidates: len(refs),
		Updated:    int(updated),
		Failed:     int(failed),
		Skipped:    int(skipped),
	}
	e.progress(summarize("series", res))
	return res, ctx.Err()
}

func (e *Enricher) enrichOneSeries(ctx context.Context, ref store.SeriesRef) error {
	client, srv, err := e.clientFor(ref.ServerID)
	if err != nil {
		return err
	}
	body, err := e.seriesDetail(ctx, client, srv, ref)
	if err != nil {
		return err
	}
	var payload seriesInfoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	info := payload.Info
	m := store.SeriesMetadata{
		Rating5Based:   info.float("rating_5based"),
		BackdropPath:   info.str("backdrop_path"),
		YoutubeTrailer: info.str("youtube_trailer"),
		TMDBID:         info.str("tmdb"),
		EpisodeRunTime: info.str("episode_run_time"),
		CategoryIDs:    info.str("category_ids"),
	}
	if m.TMDBID == "" {
		m.TMDBID = info.str("tmdb_id")
	}
	m.CategoryID = store.DefaultCategoryID
	if remote := info.num("category_id"); remote != 0 {
		mapping, err := e.store.CategoryMapping(ref.ServerID, store.ContentSeries)
		if err != nil {
			return err
		}
		if local, ok := mapping[remote]; ok {
			m.CategoryID = local
		}
	}
	affected, err := e.store.UpdateSeriesMetadata(ref.ServerID, ref.SeriesID, m)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errRowGone
	}
	return e.addNewEpisodes(ref, payload.Episodes)
}

// seriesDetail fetches get_series_info, honoring the cache only when it is
// fresher than the row's last_modified epoch marker.
func (e *Enricher) seriesDetail(ctx context.Context, client *xtream.Client, srv store.Server, ref store.SeriesRef) ([]byte, error) {
	const scope = "series_meta"
	key := respcache.Key(client.BaseURL, srv.Username, scope, strconv.FormatInt(ref.SeriesID, 10))
	lastMod := parseEpoch(ref.LastModified)
	if payload, ok := e.cache.GetFresherThan(scope, key, lastMod); ok {
		return payload, nil
	}
	u := client.PlayerAPIURL("get_series_info",
		[2]string{"series_id", strconv.FormatInt(ref.SeriesID, 10)})
	release := e.hosts.Acquire(client.BaseURL)
	body, err := client.FetchObject(ctx, u, e.cfg.DetailTimeout)
	release()
	if err != nil {
		return nil, err
	}
	if err := e.cache.Put(scope, key, body); err != nil {
		log.Printf("enrich: cache %s/%d: %v", scope, ref.SeriesID, err)
	}
	return body, nil
}

// parseEpoch reads the provider's epoch-seconds marker. Unparseable or absent
// markers yield the zero time, which makes any cached record acceptable.
func parseEpoch(s string) time.Time {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return time.Unix(n, 0)
	}
	return time.Time{}
}

// addNewEpisodes inserts episodes not seen before. Existing episode rows are
// left untouched; providers routinely rewrite old entries and honoring that
// would churn the table on every pass.
func (e *Enricher) addNewEpisodes(ref store.SeriesRef, seasons map[string][]apiEpisode) error {
	var batch []store.Episode
	for seasonKey, eps := range seasons {
		seasonNum, _ := strconv.Atoi(seasonKey)
		for _, ep := range eps {
			id := ep.ID.Int64()
			if id == 0 {
				continue
			}
			exists, err := e.store.EpisodeExists(ref.ServerID, id)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			info := ep.Info
			secs := info.num("duration_secs")
			durText := info.str("duration")
			if secs == 0 && durText != "" {
				var norm string
				secs, norm = normalize.Duration(durText)
				if norm != "" {
					durText = norm
				}
			}
			airdate := info.str("air_date")
			if airdate == "" {
				airdate = info.str("releasedate")
			}
			season := int(ep.Season.Int64())
			if season == 0 {
				season = seasonNum
			}
			batch = append(batch, store.Episode{
				ServerID:           ref.ServerID,
				SeriesID:           ref.SeriesID,
				SeasonNum:          seasonNum,
				EpisodeID:          id,
				Title:              ep.Title.String(),
				Plot:               info.str("plot"),
				Duration:           durText,
				Airdate:            normalize.Date(airdate),
				ContainerExtension: ep.ContainerExtension.String(),
				EpisodeNum:         int(ep.EpisodeNum.Int64()),
				Rating:             info.float("rating"),
				Crew:               info.str("crew"),
				TMDBID:             info.str("tmdb_id"),
				MovieImage:         info.str("movie_image"),
				DurationSecs:       secs,
				Video:              info.str("video"),
				Audio:              info.str("audio"),
				Bitrate:            info.num("bitrate"),
				CustomSID:          ep.CustomSID.String(),
				Added:              ep.Added.String(),
				DirectSource:       ep.DirectSource.String(),
				Season:             season,
			})
		}
	}
	_, err := e.store.InsertEpisodes(batch)
	return err
}
