package session

import (
	"context"
	"time"

	"github.com/lrstanley/girc"

	"pkdindustries/forkingdongles/internal/metrics"
)

// after runs fn on the loop once d has elapsed, unless the timer is cancelled
// first by a disconnect or by Run returning.
func (s *Session) after(d time.Duration, fn func(context.Context)) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.timerMu.Lock()
		_, live := s.timers[t]
		delete(s.timers, t)
		s.timerMu.Unlock()

		if live {
			s.post(fn)
		}
	})
	s.timers[t] = struct{}{}
}

func (s *Session) cancelTimers() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	for t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
}

// pendingTimers returns the number of scheduled tasks that have not fired.
func (s *Session) pendingTimers() int {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return len(s.timers)
}

// whois queries nick, deferring the query while over the rate limit.
func (s *Session) whois(nick string) {
	r := s.limiter.Reserve()
	if !r.OK() {
		s.line.Warnw("Dropping WHOIS beyond limiter burst", "nick", nick)
		return
	}

	delay := r.Delay()
	if delay <= 0 {
		metrics.WhoisQueries.WithLabelValues("false").Inc()
		s.Send(girc.WHOIS, nick)
		return
	}

	metrics.WhoisQueries.WithLabelValues("true").Inc()
	s.line.Debugw("Delaying WHOIS", "nick", nick, "delay", delay)
	s.after(delay, func(context.Context) {
		if _, ok := s.users.Get(nick); ok {
			s.Send(girc.WHOIS, nick)
		}
	})
}
