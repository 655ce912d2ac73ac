package slack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/stopyard/internal/notify"
)

type mockSlackClient struct {
	mu      sync.Mutex
	posted  []string
	postErr []error // consumed in order; nil entries succeed
}

func (m *mockSlackClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.postErr) > 0 {
		err := m.postErr[0]
		m.postErr = m.postErr[1:]
		if err != nil {
			return "", "", err
		}
	}
	m.posted = append(m.posted, channelID)
	return channelID, "1234567890.123456", nil
}

func sampleEvent() notify.Event {
	return notify.Event{
		Title: "Maintenance stop created",
		Body:  "Parada Moenda",
		Color: "#dc2626",
		Fields: []notify.Field{
			{Name: "Status", Value: "planned", Short: true},
			{Name: "Team", Value: "Mecânica"},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "C1"}); err == nil || !strings.Contains(err.Error(), "bot token") {
		t.Errorf("missing token err = %v", err)
	}
	if _, err := New(Opts{BotToken: "xoxb-1"}); err == nil || !strings.Contains(err.Error(), "channel") {
		t.Errorf("missing channel err = %v", err)
	}
	n, err := New(Opts{BotToken: "xoxb-1", ChannelID: "C1"})
	if err != nil || n.Name() != "slack" {
		t.Fatalf("New = %v, %v", n, err)
	}
}

func TestSend(t *testing.T) {
	mc := &mockSlackClient{}
	n, _ := New(Opts{ChannelID: "C1", Client: mc})
	if err := n.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mc.posted) != 1 || mc.posted[0] != "C1" {
		t.Errorf("posted = %v", mc.posted)
	}
}

func TestSend_Error(t *testing.T) {
	mc := &mockSlackClient{postErr: []error{errors.New("channel_not_found")}}
	n, _ := New(Opts{ChannelID: "C1", Client: mc})
	err := n.Send(context.Background(), sampleEvent())
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("err = %v", err)
	}
}

func TestSend_RetriesRateLimit(t *testing.T) {
	mc := &mockSlackClient{postErr: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}, nil}}
	n, _ := New(Opts{ChannelID: "C1", Client: mc})
	if err := n.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mc.posted) != 1 {
		t.Errorf("posted = %v", mc.posted)
	}
}

func TestRetryOnRateLimit_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retryOnRateLimit(ctx, func() error {
		return &slackapi.RateLimitedError{RetryAfter: time.Hour}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestEventToAttachment(t *testing.T) {
	att := eventToAttachment(sampleEvent())
	if att.Title != "Maintenance stop created" || att.Text != "Parada Moenda" || att.Color != "#dc2626" {
		t.Errorf("attachment = %+v", att)
	}
	if att.Fallback != att.Title {
		t.Errorf("Fallback = %q", att.Fallback)
	}
	if len(att.Fields) != 2 || att.Fields[0].Title != "Status" || !att.Fields[0].Short || att.Fields[1].Short {
		t.Errorf("fields = %+v", att.Fields)
	}
}
