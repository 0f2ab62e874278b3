package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/fynixtv/libsync/internal/metrics"
	"github.com/fynixtv/libsync/internal/store"
	"github.com/fynixtv/libsync/internal/xtream"
)

// categoryScopes pairs each content type with its listing action and the
// cache scope the response lives under.
var categoryScopes = []struct {
	contentType store.ContentType
	action      string
	scope       string
}{
	{store.ContentLive, "get_live_categories", "live_categories"},
	{store.ContentVOD, "get_vod_categories", "vod_categories"},
	{store.ContentSeries, "get_series_categories", "series_categories"},
}

type apiCategory struct {
	CategoryID   xtream.FlexID     `json:"category_id"`
	CategoryName xtream.FlexString `json:"category_name"`
	ParentID     xtream.FlexID     `json:"parent_id"`
}

// syncCategories imports the category trees for all three content types.
func (se *session) syncCategories(ctx context.Context) (Counts, error) {
	var total Counts
	for _, cs := range categoryScopes {
		body, err := se.listing(ctx, cs.scope, cs.action, listingTimeout)
		if err != nil {
			return total, fmt.Errorf("%s: %w", cs.contentType, err)
		}
		var cats []apiCategory
		if err := json.Unmarshal(body, &cats); err != nil {
			return total, fmt.Errorf("%s: decode: %w", cs.contentType, err)
		}
		c, err := se.insertCategories(ctx, cs.contentType, cats)
		if err != nil {
			return total, fmt.Errorf("%s: %w", cs.contentType, err)
		}
		total.add(c)
	}
	return total, nil
}

func (se *session) insertCategories(ctx context.Context, ct store.ContentType, cats []apiCategory) (Counts, error) {
	var counts Counts
	counts.Downloaded = len(cats)
	metrics.RowsDownloaded.WithLabelValues("category").Add(float64(len(cats)))
	batchSize := se.batchSize()
	for start := 0; start < len(cats); start += batchSize {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}
		end := start + batchSize
		if end > len(cats) {
			end = len(cats)
		}
		var batch []store.Category
		for _, c := range cats[start:end] {
			id := c.CategoryID.Int64()
			if id == 0 {
				log.Printf("sync: %s: dropping %s category with no id (%q)",
					se.srv.Name, ct, c.CategoryName.String())
				continue
			}
			exists, err := se.syn.store.CategoryExists(se.srv.ID, id, ct)
			if err != nil {
				return counts, err
			}
			if exists {
				counts.Existing++
				continue
			}
			cat := store.Category{
				ServerID:    se.srv.ID,
				CategoryID:  id,
				Name:        c.CategoryName.String(),
				ContentType: ct,
			}
			if pid := c.ParentID.Int64(); pid != 0 {
				cat.ParentID = sql.NullInt64{Int64: pid, Valid: true}
			}
			batch = append(batch, cat)
		}
		n, err := se.syn.store.InsertCategories(batch)
		if err != nil {
			return counts, err
		}
		counts.Inserted += n
	}
	metrics.RowsInserted.WithLabelValues("category").Add(float64(counts.Inserted))
	metrics.RowsExisting.WithLabelValues("category").Add(float64(counts.Existing))
	se.syn.progress(fmt.Sprintf("%s: categories %d downloaded, %d new, %d known",
		se.srv.Name, counts.Downloaded, counts.Inserted, counts.Existing))
	return counts, nil
}
