package capture

import (
	"context"
	"sync"
	"time"

	"DefiGuard/internal/domain/models"
	applogger "DefiGuard/pkg/logger"
)

const (
	DefaultCapacity = 100
	DefaultIdleTTL  = 15 * time.Minute
)

type session struct {
	keys    *ring[models.KeystrokePattern]
	mouse   *ring[models.MouseMovement]
	timing  *ring[models.TransactionTiming]
	updated time.Time
}

// Counts reports how many events of each kind a session holds.
type Counts struct {
	Keystrokes int `json:"keystrokes"`
	Mouse      int `json:"mouse"`
	Timing     int `json:"timing"`
}

// Store buffers behavioral events per capture session. Each kind keeps its most recent
// events up to the capacity.
type Store struct {
	capacity int
	ttl      time.Duration
	l        *applogger.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Store)

func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithIdleTTL sets how long a session survives without events.
func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func NewStore(l *applogger.Logger, opts ...Option) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		ttl:      DefaultIdleTTL,
		l:        l,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) get(id string) *session {
	ss, ok := s.sessions[id]
	if !ok {
		ss = &session{
			keys:   newRing[models.KeystrokePattern](s.capacity),
			mouse:  newRing[models.MouseMovement](s.capacity),
			timing: newRing[models.TransactionTiming](s.capacity),
		}
		s.sessions[id] = ss
	}
	ss.updated = s.now()
	return ss
}

func (s *Store) AddKeystroke(id string, k models.KeystrokePattern) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss := s.get(id)
	ss.keys.push(k)
	return ss.counts()
}

func (s *Store) AddMouse(id string, m models.MouseMovement) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss := s.get(id)
	ss.mouse.push(m)
	return ss.counts()
}

func (s *Store) AddTiming(id string, t models.TransactionTiming) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss := s.get(id)
	ss.timing.push(t)
	return ss.counts()
}

// Sample returns a copy of the buffered events of a session.
func (s *Store) Sample(id string) (models.BiometricSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sessions[id]
	if !ok {
		return models.BiometricSample{}, false
	}
	return models.BiometricSample{
		KeystrokePatterns: ss.keys.items(),
		MouseMovements:    ss.mouse.items(),
		TransactionTiming: ss.timing.items(),
	}, true
}

func (s *Store) Reset(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep drops sessions idle for longer than the TTL and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for id, ss := range s.sessions {
		if ss.updated.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps idle sessions until ctx is done.
func (s *Store) Run(ctx context.Context) {
	t := time.NewTicker(s.ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				s.l.Debug("capture sessions expired", applogger.Int("count", n))
			}
		}
	}
}

func (ss *session) counts() Counts {
	return Counts{Keystrokes: ss.keys.len(), Mouse: ss.mouse.len(), Timing: ss.timing.len()}
}
