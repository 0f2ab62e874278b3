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

type apiSeries struct {
	SeriesID     xtream.FlexID     `json:"series_id"`
	Name         xtream.FlexString `json:"name"`
	Cover        xtream.FlexString `json:"cover"`
	Plot         xtream.FlexString `json:"plot"`
	Cast         xtream.FlexString `json:"cast"`
	Director     xtream.FlexString `json:"director"`
	Genre        xtream.FlexString `json:"genre"`
	Rating       xtream.FlexFloat  `json:"rating"`
	ReleaseDate  xtream.FlexString `json:"releaseDate"`
	Releasedate  xtream.FlexString `json:"release_date"`
	CategoryID   xtream.FlexID     `json:"category_id"`
	LastModified xtream.FlexString `json:"last_modified"`
}

func (s apiSeries) releaseDate() string {
	if v := s.ReleaseDate.String(); v != "" {
		return v
	}
	return s.Releasedate.String()
}

// syncSeries imports the series listing. Episodes are not touched here; they
// only exist after enrichment fetches each series' detail payload.
func (se *session) syncSeries(ctx context.Context) (Counts, error) {
	var counts Counts
	body, err := se.listing(ctx, "series", "get_series", bulkTimeout)
	if err != nil {
		return counts, err
	}
	var list []apiSeries
	if err := json.Unmarshal(body, &list); err != nil {
		return counts, fmt.Errorf("decode: %w", err)
	}
	mapping, err := se.syn.store.CategoryMapping(se.srv.ID, store.ContentSeries)
	if err != nil {
		return counts, err
	}
	counts.Downloaded = len(list)
	metrics.RowsDownloaded.WithLabelValues("series").Add(float64(len(list)))
	batchSize := se.batchSize()
	for start := 0; start < len(list); start += batchSize {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}
		end := start + batchSize
		if end > len(list) {
			end = len(list)
		}
		var batch []store.Series
		for _, sr := range list[start:end] {
			id := sr.SeriesID.Int64()
			if id == 0 {
				log.Printf("sync: %s: dropping series with no id (%q)",
					se.srv.Name, sr.Name.String())
				continue
			}
			exists, err := se.syn.store.SeriesExists(se.srv.ID, id)
			if err != nil {
				return counts, err
			}
			if exists {
				counts.Existing++
				continue
			}
			catID := store.DefaultCategoryID
			if local, ok := mapping[sr.CategoryID.Int64()]; ok {
				catID = local
			}
			batch = append(batch, store.Series{
				ServerID:     se.srv.ID,
				CategoryID:   catID,
				SeriesID:     id,
				Name:         sr.Name.String(),
				Cover:        sr.Cover.String(),
				Plot:         sr.Plot.String(),
				Cast:         sr.Cast.String(),
				Director:     sr.Director.String(),
				Genre:        sr.Genre.String(),
				Rating:       sr.Rating.Float64(),
				ReleaseDate:  normalize.Date(sr.releaseDate()),
				LastModified: sr.LastModified.String(),
			})
		}
		n, err := se.syn.store.InsertSeries(batch)
		if err != nil {
			return counts, err
		}
		counts.Inserted += n
	}
	metrics.RowsInserted.WithLabelValues("series").Add(float64(counts.Inserted))
	metrics.RowsExisting.WithLabelValues("series").Add(float64(counts.Existing))
	se.syn.progress(fmt.Sprintf("%s: series %d downloaded, %d new, %d known",
		se.srv.Name, counts.Downloaded, counts.Inserted, counts.Existing))
	return counts, nil
}
