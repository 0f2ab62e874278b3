package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/fynixtv/libsync/internal/metrics"
	"github.com/fynixtv/libsync/internal/normalize"
	"github.com/fynixtv/libsync/internal/store"
)

type vodInfoPayload struct {
	Info      fields `json:"info"`
	MovieData fields `json:"movie_data"`
}

// EnrichVOD fetches get_vod_info for every movie without a metadata
// identifier and overwrites its enrichment columns. The provider's payload
// splits fields between "info" and "movie_data"; movie_data wins on overlap.
func (e *Enricher) EnrichVOD(ctx context.Context) (Result, error) {
	refs, err := e.store.VODMissingMetadata()
	if err != nil {
		return Result{}, err
	}
	var updated, failed, skipped int64
	runPool(ctx, e.cfg.VODWorkers, refs, func(ctx context.Context, ref store.VODRef) {
		switch err := e.enrichOneVOD(ctx, ref); {
		case err == nil:
			atomic.AddInt64(&updated, 1)
			metrics.EnrichUpdates.WithLabelValues("vod").Inc()
		case err == errRowGone:
			atomic.AddInt64(&skipped, 1)
		default:
			atomic.AddInt64(&failed, 1)
			metrics.EnrichFailures.WithLabelValues("vod").Inc()
			log.Printf("enrich: vod %d/%d: %v", ref.ServerID, ref.StreamID, err)
		}
	})
	res := Result{
		Candidates: len(refs),
		Updated:    int(updated),
		Failed:     int(failed),
		Skipped:    int(skipped),
	}
	e.progress(summarize("vod", res))
	return res, ctx.Err()
}

// errRowGone marks a candidate whose row disappeared before the update.
var errRowGone = fmt.Errorf("row no longer present")

func (e *Enricher) enrichOneVOD(ctx context.Context, ref store.VODRef) error {
	client, srv, err := e.clientFor(ref.ServerID)
	if err != nil {
		return err
	}
	u := client.PlayerAPIURL("get_vod_info",
		[2]string{"vod_id", strconv.FormatInt(ref.StreamID, 10)})
	body, err := e.detail(ctx, client, srv, "vod_meta", ref.StreamID, u)
	if err != nil {
		return err
	}
	var payload vodInfoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	f := merge(payload.Info, payload.MovieData)

	secs := f.num("duration_secs")
	durText := f.str("duration")
	if secs == 0 && durText != "" {
		var norm string
		secs, norm = normalize.Duration(durText)
		if norm != "" {
			durText = norm
		}
	}
	release := f.str("release_date")
	if release == "" {
		release = f.str("releasedate")
	}
	m := store.VODMetadata{
		CustomSID:      f.str("custom_sid"),
		DirectSource:   f.str("direct_source"),
		Plot:           f.str("plot"),
		Cast:           f.str("cast"),
		Director:       f.str("director"),
		Genre:          f.str("genre"),
		ReleaseDate:    release,
		DurationSecs:   secs,
		Duration:       durText,
		VideoQuality:   f.str("video_quality"),
		TMDBID:         f.str("tmdb_id"),
		OName:          f.str("o_name"),
		CoverBig:       f.str("cover_big"),
		MovieImage:     f.str("movie_image"),
		YoutubeTrailer: f.str("youtube_trailer"),
		Actors:         f.str("actors"),
		Description:    f.str("description"),
		Age:            f.str("age"),
		Country:        f.str("country"),
		BackdropPath:   f.str("backdrop_path"),
		Bitrate:        f.num("bitrate"),
		Status:         f.str("status"),
		Runtime:        f.str("runtime"),
	}
	affected, err := e.store.UpdateVODMetadata(ref.ServerID, ref.StreamID, m)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errRowGone
	}
	return nil
}
