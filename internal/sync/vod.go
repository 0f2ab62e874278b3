package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/fynixtv/libsync/internal/metrics"
	"github.com/fynixtv/libsync/internal/normalize"
	"github.com/fynixtv/libsync/internal/store"
	"github.com/fynixtv/libsync/internal/xtream"
)

type apiVODStream struct {
	StreamID           xtream.FlexID     `json:"stream_id"`
	Name               xtream.FlexString `json:"name"`
	StreamIcon         xtream.FlexString `json:"stream_icon"`
	Rating             xtream.FlexFloat  `json:"rating"`
	Rating5Based       xtream.FlexFloat  `json:"rating_5based"`
	Added              xtream.FlexString `json:"added"`
	CategoryID         xtream.FlexID     `json:"category_id"`
	ContainerExtension xtream.FlexString `json:"container_extension"`
	CustomSID          xtream.FlexString `json:"custom_sid"`
	DirectSource       xtream.FlexString `json:"direct_source"`
	Plot               xtream.FlexString `json:"plot"`
	Cast               xtream.FlexString `json:"cast"`
	Director           xtream.FlexString `json:"director"`
	Genre              xtream.FlexString `json:"genre"`
	ReleaseDate        xtream.FlexString `json:"release_date"`
	Releasedate        xtream.FlexString `json:"releasedate"`
	Duration           xtream.FlexString `json:"duration"`
	DurationSecs       xtream.FlexID     `json:"duration_secs"`
	VideoQuality       xtream.FlexString `json:"video_quality"`
}

// releaseDate prefers the snake_case key; some panels only send the
// run-together legacy spelling.
func (v apiVODStream) releaseDate() string {
	if s := v.ReleaseDate.String(); s != "" {
		return s
	}
	return v.Releasedate.String()
}

// syncVOD imports the movie listing.
func (se *session) syncVOD(ctx context.Context) (Counts, error) {
	var counts Counts
	body, err := se.listing(ctx, "vod_streams", "get_vod_streams", bulkTimeout)
	if err != nil {
		return counts, err
	}
	var streams []apiVODStream
	if err := json.Unmarshal(body, &streams); err != nil {
		return counts, fmt.Errorf("decode: %w", err)
	}
	mapping, err := se.syn.store.CategoryMapping(se.srv.ID, store.ContentVOD)
	if err != nil {
		return counts, err
	}
	counts.Downloaded = len(streams)
	metrics.RowsDownloaded.WithLabelValues("vod").Add(float64(len(streams)))
	batchSize := se.batchSize()
	for start := 0; start < len(streams); start += batchSize {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}
		end := start + batchSize
		if end > len(streams) {
			end = len(streams)
		}
		var batch []store.VODTitle
		for _, st := range streams[start:end] {
			id := st.StreamID.Int64()
			if id == 0 {
				log.Printf("sync: %s: dropping vod stream with no id (%q)",
					se.srv.Name, st.Name.String())
				continue
			}
			exists, err := se.syn.store.VODExists(se.srv.ID, id)
			if err != nil {
				return counts, err
			}
			if exists {
				counts.Existing++
				continue
			}
			catID := store.DefaultCategoryID
			if local, ok := mapping[st.CategoryID.Int64()]; ok {
				catID = local
			}
			secs := st.DurationSecs.Int64()
			durText := st.Duration.String()
			if secs == 0 && durText != "" {
				secs, durText = normalize.Duration(durText)
			}
			rd := st.releaseDate()
			batch = append(batch, store.VODTitle{
				ServerID:           se.srv.ID,
				CategoryID:         catID,
				StreamID:           id,
				Name:               st.Name.String(),
				StreamIcon:         st.StreamIcon.String(),
				Rating:             st.Rating.Float64(),
				Rating5Based:       st.Rating5Based.Float64(),
				Added:              st.Added.String(),
				ContainerExtension: st.ContainerExtension.String(),
				CustomSID:          st.CustomSID.String(),
				DirectSource:       st.DirectSource.String(),
				Plot:               st.Plot.String(),
				Cast:               st.Cast.String(),
				Director:           st.Director.String(),
				Genre:              st.Genre.String(),
				ReleaseDate:        normalize.Date(rd),
				Year:               normalize.Year(rd, st.Name.String()),
				DurationSecs:       secs,
				Duration:           durText,
				VideoQuality:       st.VideoQuality.String(),
			})
		}
		n, err := se.syn.store.InsertVODTitles(batch)
		if err != nil {
			return counts, err
		}
		counts.Inserted += n
	}
	metrics.RowsInserted.WithLabelValues("vod").Add(float64(counts.Inserted))
	metrics.RowsExisting.WithLabelValues("vod").Add(float64(counts.Existing))
	se.syn.progress(fmt.Sprintf("%s: vod %d downloaded, %d new, %d known",
		se.srv.Name, counts.Downloaded, counts.Inserted, counts.Existing))
	return counts, nil
}
