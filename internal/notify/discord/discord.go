// Package discord delivers cpg alerts to a Discord channel over the REST
// API.
package discord

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

const maxRetries = 3

// session abstracts the discordgo methods we use, enabling test mocks.
type session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sink posts alert text to one channel.
type Sink struct {
	sess        session
	channelID   string
	baseBackoff time.Duration
}

// SinkOpts holds parameters for creating a Discord Sink.
type SinkOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real API.
	Session session
}

// New creates a Discord Sink.
func New(opts SinkOpts) (*Sink, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	sess := opts.Session
	if sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		sess = dg
	}
	return &Sink{sess: sess, channelID: opts.ChannelID, baseBackoff: time.Second}, nil
}

// Name implements notify.Sink.
func (s *Sink) Name() string { return "discord" }

// PostAlert implements notify.Sink.
func (s *Sink) PostAlert(ctx context.Context, text string) error {
	for attempt := 0; ; attempt++ {
		_, err := s.sess.ChannelMessageSend(s.channelID, text, discordgo.WithContext(ctx))
		if err == nil {
			return nil
		}
		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			return fmt.Errorf("discord: post alert: %w", err)
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * s.baseBackoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
