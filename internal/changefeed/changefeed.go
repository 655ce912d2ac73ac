// Package changefeed records row-level writes and streams them to
// subscribers by polling the change_events table.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zulandar/stopyard/internal/models"
	"gorm.io/gorm"
)

// DefaultPollInterval is how often Watch checks for new events.
const DefaultPollInterval = 2 * time.Second

// DefaultLookback is how many ids below its cursor Watch re-reads on each
// poll to catch events whose transaction committed after a higher id.
const DefaultLookback = 256

// Record appends a change event. Call it with the transaction that performed
// the write so the event commits or rolls back with it.
func Record(tx *gorm.DB, table, kind, recordID string, payload any) error {
	switch kind {
	case models.KindInsert, models.KindUpdate, models.KindDelete:
	default:
		return fmt.Errorf("changefeed: unknown kind %q", kind)
	}

	var body string
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("changefeed: marshal %s %s: %w", table, recordID, err)
		}
		body = string(data)
	}

	ev := models.ChangeEvent{
		Table:     table,
		Kind:      kind,
		RecordID:  recordID,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&ev).Error; err != nil {
		return fmt.Errorf("changefeed: record %s %s: %w", kind, table, err)
	}
	return nil
}

// Decode unmarshals an event's payload into T.
func Decode[T any](ev models.ChangeEvent) (T, error) {
	var v T
	if ev.Payload == "" {
		return v, fmt.Errorf("changefeed: event %d has no payload", ev.ID)
	}
	if err := json.Unmarshal([]byte(ev.Payload), &v); err != nil {
		return v, fmt.Errorf("changefeed: decode event %d: %w", ev.ID, err)
	}
	return v, nil
}

// Since returns events with id > afterID in id order, optionally restricted
// to the given tables.
func Since(ctx context.Context, db *gorm.DB, afterID uint, tables ...string) ([]models.ChangeEvent, error) {
	q := db.WithContext(ctx).Where("id > ?", afterID)
	if len(tables) > 0 {
		q = q.Where("table_name IN ?", tables)
	}
	var events []models.ChangeEvent
	if err := q.Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("changefeed: since %d: %w", afterID, err)
	}
	return events, nil
}

// LatestID returns the highest event id, or 0 for an empty feed.
func LatestID(ctx context.Context, db *gorm.DB) (uint, error) {
	var id uint
	if err := db.WithContext(ctx).Model(&models.ChangeEvent{}).
		Select("COALESCE(MAX(id), 0)").Scan(&id).Error; err != nil {
		return 0, fmt.Errorf("changefeed: latest id: %w", err)
	}
	return id, nil
}

// WatchOpts holds parameters for Watch.
type WatchOpts struct {
	Interval time.Duration // defaults to DefaultPollInterval
	Tables   []string      // empty means all tables
	AfterID  *uint         // defaults to the current latest id
	Lookback uint          // defaults to DefaultLookback
	Logger   *log.Logger   // defaults to log.Default()
}

// Watch streams new events until ctx is cancelled, then closes the channel.
// A poll that finishes after cancellation is dropped.
//
// Ids are assigned at insert but become visible at commit, so on MySQL and
// Postgres a lower id can appear after a higher one was delivered. Each poll
// re-reads the Lookback ids below the cursor and sends only ids it has not
// sent yet. Delivery is at most once per event; an event that commits after
// more than Lookback newer ids have been delivered is missed.
func Watch(ctx context.Context, db *gorm.DB, opts WatchOpts) (<-chan models.ChangeEvent, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	lookback := opts.Lookback
	if lookback == 0 {
		lookback = DefaultLookback
	}

	var cursor uint
	if opts.AfterID != nil {
		cursor = *opts.AfterID
	} else {
		id, err := LatestID(ctx, db)
		if err != nil {
			return nil, err
		}
		cursor = id
	}
	start := cursor
	seen := make(map[uint]struct{})

	ch := make(chan models.ChangeEvent, 64)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				low := start
				if cursor > start+lookback {
					low = cursor - lookback
				}
				events, err := Since(ctx, db, low, opts.Tables...)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					logger.Warn("change feed poll failed", "after", low, "err", err)
					continue
				}
				for _, ev := range events {
					if _, ok := seen[ev.ID]; ok {
						continue
					}
					select {
					case ch <- ev:
						seen[ev.ID] = struct{}{}
						cursor = max(cursor, ev.ID)
					case <-ctx.Done():
						return
					}
				}
				for id := range seen {
					if id <= low {
						delete(seen, id)
					}
				}
			}
		}
	}()
	return ch, nil
}

// Prune deletes events created before olderThan and returns how many went.
func Prune(ctx context.Context, db *gorm.DB, olderThan time.Time) (int64, error) {
	result := db.WithContext(ctx).Where("created_at < ?", olderThan.UTC()).Delete(&models.ChangeEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("changefeed: prune: %w", result.Error)
	}
	return result.RowsAffected, nil
}
