package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/notify"
	"github.com/zulandar/cpg/internal/product"
)

// SendResponse reports the outcome of sending one channel.
type SendResponse struct {
	Channel climate.Source     `json:"channel"`
	Status  product.SetStatus  `json:"status"`
	Desc    string             `json:"desc,omitempty"`
	Sending []*product.Product `json:"sending,omitempty"`
}

// SendAll disseminates every unsent product of one channel. Sending a
// channel whose products are all SENT changes nothing. Failures are reported
// in the response and on the product set; the session only leaves its
// current state when every product of every channel is SENT.
func (s *Session) SendAll(ctx context.Context, ch climate.Source, operational bool, user string) SendResponse {
	resp := SendResponse{Channel: ch}
	pd := s.ProdData()
	if pd.Empty() {
		return s.sendFatal(ctx, resp, fmt.Sprintf("There is no product data in the session: %s", s.id))
	}
	set := pd.Set(ch)
	if set == nil || set.Len() == 0 {
		return s.sendFatal(ctx, resp, fmt.Sprintf("There are no %s products in the session: %s", ch, s.id))
	}
	unsent := set.Unsent()
	if len(unsent) == 0 {
		set.Rollup("sending")
		resp.Status, resp.Desc = set.Status, set.StatusDesc
		return resp
	}
	if s.IsTerminated() {
		return s.sendFatal(ctx, resp, fmt.Sprintf("The session %s is %s and can no longer send products", s.id, s.CurrentState()))
	}
	sender := s.stages.Senders[ch]
	if sender == nil {
		return s.sendFatal(ctx, resp, fmt.Sprintf("No sender is configured for %s", ch))
	}
	if !s.global.AllowDisseminate {
		s.logger.Warn().Str("channel", string(ch)).Msg("session: dissemination is disabled, products not sent")
		s.notify(ctx, sendAction(ch), field("CHANNEL", string(ch)), field("REASON", "allowDisseminate is set to false"))
		resp.Status, resp.Desc = set.Status, "allowDisseminate is set to false"
		return resp
	}

	for _, p := range unsent {
		resp.Sending = append(resp.Sending, p)
		if err := sender.Send(ctx, s.id, p, operational, user); err != nil {
			s.mu.Lock()
			p.SetStatus(product.StatusError, err.Error())
			s.mu.Unlock()
			s.logger.Error().Err(err).Str("channel", string(ch)).Str("product", p.Key).Msg("session: send failed")
			s.alert(ctx, notify.Problem, fmt.Sprintf("Failed to send %s product %s in the session %s: %v", ch, p.Key, s.id, err))
			continue
		}
		s.logger.Info().Str("channel", string(ch)).Str("product", p.Key).Str("user", user).Msg("session: product sent")
	}

	s.mu.Lock()
	set.Rollup("sending")
	s.mu.Unlock()
	if err := s.saveProdData(ctx); err != nil {
		s.mu.Lock()
		set.SetStatus(product.SetHasError, fmt.Sprintf("There is error in the %s products, happened when saving with reason: %v", ch, err))
		s.mu.Unlock()
	}
	resp.Status, resp.Desc = set.Status, set.StatusDesc

	if pd.AllSent() && !s.IsTerminated() {
		s.setState(ctx, climate.StateSent)
	}
	s.notify(ctx, sendAction(ch), field("CHANNEL", string(ch)), field("SET_STATUS", string(set.Status)))
	return resp
}

func (s *Session) sendFatal(ctx context.Context, resp SendResponse, desc string) SendResponse {
	resp.Status, resp.Desc = product.SetFatalError, desc
	if set := s.ProdData().Set(resp.Channel); set != nil {
		s.mu.Lock()
		set.SetStatus(product.SetFatalError, desc)
		s.mu.Unlock()
	}
	s.logger.Error().Str("channel", string(resp.Channel)).Msg("session: " + desc)
	s.alert(ctx, notify.Problem, desc)
	return resp
}

func sendAction(ch climate.Source) string {
	return strings.ToUpper(string(ch)) + "_SEND_STATUS"
}
