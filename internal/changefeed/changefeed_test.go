package changefeed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/stopyard/internal/dbtest"
	"github.com/zulandar/stopyard/internal/models"
	"gorm.io/gorm"
)

type payload struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

func TestRecord_AndSince(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	if err := Record(db, "maintenance_stops", models.KindInsert, "s1", payload{Title: "A"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := Record(db, "asset_groups", models.KindUpdate, "g1", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := Record(db, "maintenance_stops", models.KindDelete, "s1", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	all, err := Since(ctx, db, 0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].Kind != models.KindInsert || all[0].Table != "maintenance_stops" || all[0].RecordID != "s1" {
		t.Errorf("first event = %+v", all[0])
	}
	if all[1].Payload != "" {
		t.Errorf("nil payload stored as %q", all[1].Payload)
	}

	stops, err := Since(ctx, db, all[0].ID, "maintenance_stops")
	if err != nil {
		t.Fatalf("Since filtered: %v", err)
	}
	if len(stops) != 1 || stops[0].Kind != models.KindDelete {
		t.Errorf("filtered = %+v, want the delete only", stops)
	}
}

func TestRecord_UnknownKind(t *testing.T) {
	db := dbtest.Open(t)
	err := Record(db, "assets", "UPSERT", "a1", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Errorf("err = %v, want unknown kind", err)
	}
}

func TestRecord_RolledBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t)
	_ = db.Transaction(func(tx *gorm.DB) error {
		if err := Record(tx, "assets", models.KindInsert, "a1", nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
		return gorm.ErrInvalidData
	})
	id, err := LatestID(context.Background(), db)
	if err != nil {
		t.Fatalf("LatestID: %v", err)
	}
	if id != 0 {
		t.Errorf("LatestID = %d after rollback, want 0", id)
	}
}

func TestDecode(t *testing.T) {
	db := dbtest.Open(t)
	if err := Record(db, "maintenance_stops", models.KindInsert, "s1", payload{Title: "Parada", Status: "planned"}); err != nil {
		t.Fatal(err)
	}
	events, _ := Since(context.Background(), db, 0)
	got, err := Decode[payload](events[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Title != "Parada" || got.Status != "planned" {
		t.Errorf("Decode = %+v", got)
	}

	if _, err := Decode[payload](models.ChangeEvent{ID: 9}); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestLatestID(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	id, err := LatestID(ctx, db)
	if err != nil || id != 0 {
		t.Fatalf("LatestID on empty feed = %d, %v", id, err)
	}
	for i := 0; i < 3; i++ {
		Record(db, "assets", models.KindInsert, "a", nil)
	}
	id, _ = LatestID(ctx, db)
	if id != 3 {
		t.Errorf("LatestID = %d, want 3", id)
	}
}

func TestWatch_StreamsNewEventsOnly(t *testing.T) {
	db := dbtest.Open(t)
	Record(db, "assets", models.KindInsert, "old", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := Watch(ctx, db, WatchOpts{Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	Record(db, "maintenance_stops", models.KindInsert, "new1", nil)
	Record(db, "maintenance_stops", models.KindUpdate, "new1", nil)

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev.Kind+":"+ev.RecordID)
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != "INSERT:new1" || got[1] != "UPDATE:new1" {
		t.Errorf("events = %v", got)
	}
}

func TestWatch_TableFilter(t *testing.T) {
	db := dbtest.Open(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Watch(ctx, db, WatchOpts{Interval: 10 * time.Millisecond, Tables: []string{"asset_groups"}})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	Record(db, "maintenance_stops", models.KindInsert, "s1", nil)
	Record(db, "asset_groups", models.KindInsert, "g1", nil)

	select {
	case ev := <-ch:
		if ev.Table != "asset_groups" {
			t.Errorf("event table = %q, want asset_groups", ev.Table)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestWatch_ExplicitCursor(t *testing.T) {
	db := dbtest.Open(t)
	Record(db, "assets", models.KindInsert, "a1", nil)
	Record(db, "assets", models.KindInsert, "a2", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	after := uint(1)
	ch, err := Watch(ctx, db, WatchOpts{Interval: 10 * time.Millisecond, AfterID: &after})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	select {
	case ev := <-ch:
		if ev.RecordID != "a2" {
			t.Errorf("first event = %q, want a2", ev.RecordID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func insertEvent(t *testing.T, db *gorm.DB, id uint, recordID string) {
	t.Helper()
	ev := models.ChangeEvent{ID: id, Table: "assets", Kind: models.KindInsert, RecordID: recordID, CreatedAt: time.Now().UTC()}
	if err := db.Create(&ev).Error; err != nil {
		t.Fatalf("insert event %d: %v", id, err)
	}
}

func TestWatch_DeliversLateLowerID(t *testing.T) {
	db := dbtest.Open(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	after := uint(0)
	ch, err := Watch(ctx, db, WatchOpts{Interval: 10 * time.Millisecond, AfterID: &after, Lookback: 16})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	next := func() models.ChangeEvent {
		t.Helper()
		select {
		case ev := <-ch:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out")
		}
		return models.ChangeEvent{}
	}

	insertEvent(t, db, 10, "high")
	if ev := next(); ev.ID != 10 {
		t.Fatalf("first event id = %d, want 10", ev.ID)
	}

	// Id 5 becomes visible after 10 was already delivered.
	insertEvent(t, db, 5, "late")
	if ev := next(); ev.ID != 5 || ev.RecordID != "late" {
		t.Fatalf("second event = %d %q, want 5 late", ev.ID, ev.RecordID)
	}

	// Nothing already sent comes back.
	insertEvent(t, db, 11, "after")
	if ev := next(); ev.ID != 11 {
		t.Errorf("third event id = %d, want 11", ev.ID)
	}
}

func TestWatch_LateIDBelowLookbackIsMissed(t *testing.T) {
	db := dbtest.Open(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	after := uint(0)
	ch, err := Watch(ctx, db, WatchOpts{Interval: 10 * time.Millisecond, AfterID: &after, Lookback: 2})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	insertEvent(t, db, 10, "high")
	select {
	case ev := <-ch:
		if ev.ID != 10 {
			t.Fatalf("first event id = %d, want 10", ev.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	insertEvent(t, db, 5, "too-late")
	insertEvent(t, db, 12, "next")
	select {
	case ev := <-ch:
		if ev.ID != 12 {
			t.Errorf("event id = %d, want 12 (id 5 is outside the lookback)", ev.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestWatch_ClosesOnCancel(t *testing.T) {
	db := dbtest.Open(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Watch(ctx, db, WatchOpts{Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A buffered event may drain first; the channel must still close.
			for range ch {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestPrune(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	old := models.ChangeEvent{Table: "assets", Kind: models.KindInsert, RecordID: "a1", CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	if err := db.Create(&old).Error; err != nil {
		t.Fatal(err)
	}
	Record(db, "assets", models.KindInsert, "a2", nil)

	n, err := Prune(ctx, db, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	rest, _ := Since(ctx, db, 0)
	if len(rest) != 1 || rest[0].RecordID != "a2" {
		t.Errorf("remaining = %+v", rest)
	}
}
