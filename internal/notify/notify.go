// Package notify turns change-feed events into chat notifications and fans
// them out to the configured platforms (Slack, Discord).
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zulandar/stopyard/internal/changefeed"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/timeline"
)

// Notifier delivers an Event to one chat platform.
type Notifier interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// Event is a change formatted for display in chat.
type Event struct {
	Title    string  // e.g. "Maintenance stop created"
	Body     string  // detail text
	Color    string  // sidebar color, e.g. "#dc2626"
	Fields   []Field // key-value metadata pairs
	Table    string
	Kind     string
	RecordID string
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // render side-by-side with another field
}

var entityNames = map[string]string{
	"maintenance_stops":      "Maintenance stop",
	"maintenance_strategies": "Maintenance strategy",
	"asset_groups":           "Asset group",
	"assets":                 "Asset",
	"location_centers":       "Location center",
}

var verbs = map[string]string{
	models.KindInsert: "created",
	models.KindUpdate: "updated",
	models.KindDelete: "deleted",
}

const dateFormat = "2006-01-02"

// FormatChange renders a change event. ok is false for tables or kinds that
// are not announced. A payload that fails to decode still yields an event
// carrying the record id.
func FormatChange(ev models.ChangeEvent) (e Event, ok bool) {
	entity, known := entityNames[ev.Table]
	verb, knownKind := verbs[ev.Kind]
	if !known || !knownKind {
		return Event{}, false
	}
	e = Event{
		Title:    entity + " " + verb,
		Body:     ev.RecordID,
		Color:    timeline.BucketUnknown.Hex(),
		Table:    ev.Table,
		Kind:     ev.Kind,
		RecordID: ev.RecordID,
	}

	switch ev.Table {
	case "maintenance_stops":
		s, err := changefeed.Decode[models.Stop](ev)
		if err != nil {
			return e, true
		}
		e.Body = s.Title
		e.Color = timeline.PriorityColor(s.Priority).Hex()
		e.Fields = []Field{
			{Name: "Status", Value: s.Status, Short: true},
			{Name: "Priority", Value: s.Priority, Short: true},
			{Name: "Planned", Value: s.PlannedStart.Format(dateFormat) + " to " + s.PlannedEnd.Format(dateFormat), Short: true},
			{Name: "Team", Value: s.ResponsibleTeam, Short: true},
		}
		if s.CenterCode != "" {
			e.Fields = append(e.Fields, Field{Name: "Center", Value: strings.TrimSpace(s.CenterCode + " " + s.Phase), Short: true})
		}
	case "maintenance_strategies":
		s, err := changefeed.Decode[models.Strategy](ev)
		if err != nil {
			return e, true
		}
		e.Body = s.Name
		e.Color = timeline.PriorityColor(s.Priority).Hex()
		active := "no"
		if s.IsActive {
			active = "yes"
		}
		e.Fields = []Field{
			{Name: "Every", Value: fmt.Sprintf("%d %s", s.FrequencyValue, s.FrequencyUnit), Short: true},
			{Name: "Duration", Value: fmt.Sprintf("%d %s", s.DurationValue, s.DurationUnit), Short: true},
			{Name: "Priority", Value: s.Priority, Short: true},
			{Name: "Active", Value: active, Short: true},
		}
	case "asset_groups":
		g, err := changefeed.Decode[models.AssetGroup](ev)
		if err != nil {
			return e, true
		}
		e.Body = g.Name
		e.Fields = []Field{
			{Name: "Center", Value: g.CenterCode, Short: true},
			{Name: "Phase", Value: g.Phase, Short: true},
		}
	case "assets":
		a, err := changefeed.Decode[models.Asset](ev)
		if err != nil {
			return e, true
		}
		e.Body = a.Tag + " " + a.Name
	case "location_centers":
		c, err := changefeed.Decode[models.LocationCenter](ev)
		if err != nil {
			return e, true
		}
		e.Body = c.Code + " " + c.Name
	}
	return e, true
}

// Relay forwards formatted events from feed to every notifier until feed is
// closed or ctx is cancelled. Delivery is best-effort: failures are logged
// and the next event is processed.
func Relay(ctx context.Context, feed <-chan models.ChangeEvent, notifiers []Notifier, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-feed:
			if !open {
				return
			}
			e, ok := FormatChange(ev)
			if !ok {
				continue
			}
			for _, n := range notifiers {
				if err := n.Send(ctx, e); err != nil {
					logger.Warn("notification failed", "notifier", n.Name(), "event", ev.ID, "err", err)
				}
			}
		}
	}
}
