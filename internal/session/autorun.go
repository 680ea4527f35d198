package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/cpg/internal/climate"
	"github.com/zulandar/cpg/internal/notify"
)

// AutoUser is recorded as the sender of automatically disseminated products.
const AutoUser = "auto"

type waitResult int

const (
	waitExpired waitResult = iota
	waitHandedOff
	waitTerminated
)

// AutoRun drives the session unattended: create, quality check, display
// window, headless display, format, review window and auto-send. During each
// window a person may take over by moving the session on, or cancel it; the
// run then stops without touching the session. The returned error is non-nil
// only when ctx is done.
func (s *Session) AutoRun(ctx context.Context) error {
	if err := s.ExecuteCreate(ctx); err != nil {
		return nil
	}
	if !s.checkQuality(ctx) || s.stopped(ctx) {
		return nil
	}

	s.alert(ctx, notify.Significant, fmt.Sprintf("Climate Report Created, waiting for display. CPG Session ID = %s", s.id))
	res, err := s.waitFor(ctx, s.global.DisplayWaitMinutes(), "DISPLAY", func(st climate.SessionState) bool {
		return st >= climate.StateDisplay && st <= climate.StateSent
	})
	if err != nil || res != waitExpired {
		s.logWaitEnd("display", res)
		return err
	}

	if err := s.ExecuteHeadlessDisplay(ctx); err != nil || s.stopped(ctx) {
		return nil
	}
	if err := s.ExecuteFormat(ctx); err != nil || s.stopped(ctx) {
		return nil
	}

	s.alert(ctx, notify.Significant, fmt.Sprintf("Formatted Climate Product generated, waiting for review. CPG Session ID = %s", s.id))
	res, err = s.waitFor(ctx, s.global.ReviewWaitMinutes(), "REVIEW", func(st climate.SessionState) bool {
		return st >= climate.StateReview && st <= climate.StateSent
	})
	if err != nil || res != waitExpired {
		s.logWaitEnd("review", res)
		return err
	}

	s.autoSend(ctx)
	return nil
}

// stopped re-reads the stored state and reports whether the run must end
// because the session was terminated elsewhere.
func (s *Session) stopped(ctx context.Context) bool {
	s.Refresh(ctx)
	if s.IsTerminated() {
		s.logger.Info().Str("state", s.CurrentState().String()).Msg("session: auto run stopped, session terminated")
		return true
	}
	return false
}

func (s *Session) logWaitEnd(window string, res waitResult) {
	switch res {
	case waitHandedOff:
		s.logger.Info().Str("window", window).Msg("session: handed off to a user, auto run ends")
	case waitTerminated:
		s.logger.Info().Str("window", window).Msg("session: terminated during wait, auto run ends")
	}
}

// waitFor polls the stored state once per poll interval for up to minutes.
// It ends early when handedOff matches the state or the session is
// terminated, and publishes a COUNTDOWN notification on each tick.
func (s *Session) waitFor(ctx context.Context, minutes int, waitFor string, handedOff func(climate.SessionState) bool) (waitResult, error) {
	total := minutes * 60
	check := func() (waitResult, bool) {
		s.Refresh(ctx)
		if s.IsTerminated() {
			return waitTerminated, true
		}
		if handedOff(s.CurrentState()) {
			return waitHandedOff, true
		}
		return waitExpired, false
	}
	if total <= 0 {
		res, _ := check()
		return res, nil
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for passed := 0; passed < total; {
		if res, done := check(); done {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return waitExpired, ctx.Err()
		case <-ticker.C:
		}
		passed++
		s.notify(ctx, ActionCountdown,
			field("TOTAL_SECONDS", strconv.Itoa(total)),
			field("SECONDS_PASSED", strconv.Itoa(passed)),
			field("PERCENT_PASSED", fmt.Sprintf("%.2f", float64(passed)*100/float64(total))),
			field("WAIT_FOR", waitFor),
		)
	}
	res, _ := check()
	return res, nil
}

// autoSend marks the session REVIEW and, when auto-send is allowed, sends
// both channels as the automatic user.
func (s *Session) autoSend(ctx context.Context) {
	if s.ProdData().Empty() {
		s.stageError(ctx, "auto send", fmt.Errorf("%w: nothing to send", ErrEmptyProdData))
		return
	}
	s.setState(ctx, climate.StateReview)
	if !s.global.AllowAutoSend {
		s.logger.Info().Msg("session: allowAutoSend is set to false, products wait for a user to send")
		return
	}
	for _, ch := range climate.Channels {
		if s.ProdData().Set(ch) == nil {
			continue
		}
		resp := s.SendAll(ctx, ch, true, AutoUser)
		s.logger.Info().Str("channel", string(ch)).Str("status", string(resp.Status)).Msg("session: auto send finished")
	}
}
