package slack

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
)

type mockClient struct {
	calls    int
	channels []string
	errs     []error
}

func (m *mockClient) PostMessageContext(_ context.Context, channelID string, _ ...slackapi.MsgOption) (string, string, error) {
	m.calls++
	m.channels = append(m.channels, channelID)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", "", err
	}
	return channelID, "1700000000.000100", nil
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(SinkOpts{ChannelID: "C1"})
	if err == nil || !strings.Contains(err.Error(), "bot token is required") {
		t.Errorf("err = %v, want bot token error", err)
	}
}

func TestNew_RequiresChannel(t *testing.T) {
	_, err := New(SinkOpts{BotToken: "xoxb-x"})
	if err == nil || !strings.Contains(err.Error(), "channel is required") {
		t.Errorf("err = %v, want channel error", err)
	}
}

func TestPostAlert_Success(t *testing.T) {
	mc := &mockClient{}
	s, err := New(SinkOpts{ChannelID: "C1", Client: mc})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PostAlert(context.Background(), "[PROBLEM] boom"); err != nil {
		t.Fatalf("PostAlert: %v", err)
	}
	if mc.calls != 1 || mc.channels[0] != "C1" {
		t.Errorf("calls = %d channels = %v", mc.calls, mc.channels)
	}
	if s.Name() != "slack" {
		t.Errorf("Name() = %q", s.Name())
	}
}

func TestPostAlert_RetriesRateLimit(t *testing.T) {
	mc := &mockClient{errs: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}}}
	s, _ := New(SinkOpts{ChannelID: "C1", Client: mc})
	if err := s.PostAlert(context.Background(), "x"); err != nil {
		t.Fatalf("PostAlert: %v", err)
	}
	if mc.calls != 2 {
		t.Errorf("calls = %d, want 2", mc.calls)
	}
}

func TestPostAlert_OtherErrorNotRetried(t *testing.T) {
	mc := &mockClient{errs: []error{errors.New("channel_not_found")}}
	s, _ := New(SinkOpts{ChannelID: "C1", Client: mc})
	err := s.PostAlert(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "slack: post alert: channel_not_found") {
		t.Errorf("err = %v", err)
	}
	if mc.calls != 1 {
		t.Errorf("calls = %d, want 1", mc.calls)
	}
}
