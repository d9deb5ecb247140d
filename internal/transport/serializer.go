package transport

import (
	"context"
	"sync"
)

type section struct {
	sem  chan struct{}
	refs int
}

// Serializer is a keyed mutex table: one exclusive section per user.
// Entries are created on demand and dropped once no caller holds or waits on them.
type Serializer struct {
	mu       sync.Mutex
	sections map[string]*section
}

// NewSerializer creates an empty [Serializer].
func NewSerializer() *Serializer {
	return &Serializer{sections: make(map[string]*section)}
}

// WithLock runs fn while holding the section for key. Waiting honours ctx; fn itself runs to
// completion once the section is acquired. The section is released on every exit path.
func (s *Serializer) WithLock(ctx context.Context, key string, fn func() error) error {
	sec := s.acquire(key)
	defer s.release(key, sec)

	select {
	case sec.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sec.sem }()

	return fn()
}

func (s *Serializer) acquire(key string) *section {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sections == nil {
		s.sections = make(map[string]*section)
	}
	sec, ok := s.sections[key]
	if !ok {
		sec = &section{sem: make(chan struct{}, 1)}
		s.sections[key] = sec
	}
	sec.refs++
	return sec
}

func (s *Serializer) release(key string, sec *section) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec.refs--
	if sec.refs == 0 {
		delete(s.sections, key)
	}
}

// Len returns the number of live sections.
func (s *Serializer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sections)
}
