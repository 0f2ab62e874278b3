package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/fynixtv/libsync/internal/metrics"
	"github.com/fynixtv/libsync/internal/store"
	"github.com/fynixtv/libsync/internal/xtream"
)

type apiLiveStream struct {
	StreamID     xtream.FlexID     `json:"stream_id"`
	Name         xtream.FlexString `json:"name"`
	StreamType   xtream.FlexString `json:"stream_type"`
	StreamIcon   xtream.FlexString `json:"stream_icon"`
	EpgChannelID xtream.FlexString `json:"epg_channel_id"`
	CategoryID   xtream.FlexID     `json:"category_id"`
	TVArchive    xtream.FlexID     `json:"tv_archive"`
	DirectSource xtream.FlexString `json:"direct_source"`
	ArchiveDays  xtream.FlexID     `json:"tv_archive_duration"`
}

// syncLive imports the live channel listing.
func (se *session) syncLive(ctx context.Context) (Counts, error) {
	var counts Counts
	body, err := se.listing(ctx, "live_streams", "get_live_streams", bulkTimeout)
	if err != nil {
		return counts, err
	}
	var streams []apiLiveStream
	if err := json.Unmarshal(body, &streams); err != nil {
		return counts, fmt.Errorf("decode: %w", err)
	}
	mapping, err := se.syn.store.CategoryMapping(se.srv.ID, store.ContentLive)
	if err != nil {
		return counts, err
	}
	counts.Downloaded = len(streams)
	metrics.RowsDownloaded.WithLabelValues("live").Add(float64(len(streams)))
	batchSize := se.batchSize()
	for start := 0; start < len(streams); start += batchSize {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}
		end := start + batchSize
		if end > len(streams) {
			end = len(streams)
		}
		var batch []store.LiveChannel
		for _, st := range streams[start:end] {
			id := st.StreamID.Int64()
			if id == 0 {
				log.Printf("sync: %s: dropping live stream with no id (%q)",
					se.srv.Name, st.Name.String())
				continue
			}
			exists, err := se.syn.store.LiveExists(se.srv.ID, id)
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
			batch = append(batch, store.LiveChannel{
				ServerID:          se.srv.ID,
				CategoryID:        catID,
				StreamID:          id,
				Name:              st.Name.String(),
				StreamType:        st.StreamType.String(),
				StreamIcon:        st.StreamIcon.String(),
				EpgChannelID:      st.EpgChannelID.String(),
				TVArchive:         int(st.TVArchive.Int64()),
				DirectSource:      st.DirectSource.String(),
				TVArchiveDuration: int(st.ArchiveDays.Int64()),
			})
		}
		n, err := se.syn.store.InsertLiveChannels(batch)
		if err != nil {
			return counts, err
		}
		counts.Inserted += n
	}
	metrics.RowsInserted.WithLabelValues("live").Add(float64(counts.Inserted))
	metrics.RowsExisting.WithLabelValues("live").Add(float64(counts.Existing))
	se.syn.progress(fmt.Sprintf("%s: live %d downloaded, %d new, %d known",
		se.srv.Name, counts.Downloaded, counts.Inserted, counts.Existing))
	return counts, nil
}
