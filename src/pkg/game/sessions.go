package game

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/q-controller/guessit/src/pkg/items"
)

const DefaultSessionTTL = 24 * time.Hour

// Flash is a one-shot message shown on the next rendered page. Emphasis is
// rendered in bold after Text.
type Flash struct {
	Text     string
	Emphasis string
}

type session struct {
	secret    items.Identifier
	hasSecret bool
	flashes   []Flash
	lastSeen  time.Time
}

// Sessions keeps per-browser game state in memory. The cookie only carries a
// random session id. Sessions idle for longer than the TTL are dropped by
// Sweep.
type Sessions struct {
	cookie string
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	data map[string]*session
}

type SessionsOption func(*Sessions)

func WithTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) {
		s.ttl = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) {
		s.now = now
	}
}

func NewSessions(cookie string, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		cookie: cookie,
		ttl:    DefaultSessionTTL,
		now:    time.Now,
		data:   make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the live session of the request without creating one.
func (s *Sessions) Lookup(r *http.Request) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(r)
}

// ID returns the session of the request, starting a new one (and setting
// the cookie) when the request carries none or an unknown one.
func (s *Sessions) ID(w http.ResponseWriter, r *http.Request) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.lookup(r); ok {
		return id
	}

	id := uuid.NewString()
	s.data[id] = &session{lastSeen: s.now()}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// lookup must be called with s.mu held.
func (s *Sessions) lookup(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cookie)
	if err != nil {
		return "", false
	}
	sess, ok := s.data[c.Value]
	if !ok {
		return "", false
	}
	if s.expired(sess) {
		delete(s.data, c.Value)
		return "", false
	}
	sess.lastSeen = s.now()
	return c.Value, true
}

func (s *Sessions) expired(sess *session) bool {
	return s.now().Sub(sess.lastSeen) > s.ttl
}

// Sweep drops idle sessions and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.data {
		if s.expired(sess) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				slog.DebugContext(ctx, "Sessions expired", "count", removed)
			}
		}
	}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *Sessions) Secret(id string) (items.Identifier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.data[id]; ok && sess.hasSecret {
		return sess.secret, true
	}
	return "", false
}

func (s *Sessions) SetSecret(id string, secret items.Identifier) {
	s.update(id, func(sess *session) {
		sess.secret = secret
		sess.hasSecret = true
	})
}

func (s *Sessions) ClearSecret(id string) {
	s.update(id, func(sess *session) {
		sess.secret = ""
		sess.hasSecret = false
	})
}

func (s *Sessions) Flash(id string, flashes ...Flash) {
	s.update(id, func(sess *session) {
		sess.flashes = append(sess.flashes, flashes...)
	})
}

// Flashes returns and forgets the pending messages.
func (s *Sessions) Flashes(id string) []Flash {
	var flashes []Flash
	s.update(id, func(sess *session) {
		flashes = sess.flashes
		sess.flashes = nil
	})
	return flashes
}

// update ignores ids of sessions that were never started or already swept.
func (s *Sessions) update(id string, fn func(*session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.data[id]; ok {
		fn(sess)
	}
}
