package session

import "sync"

// Scope collects releases and runs them in reverse order on Close.
type Scope struct {
	mu       sync.Mutex
	releases []Release
	closed   bool
}

// Add registers r. Adding to a closed scope releases r immediately.
func (s *Scope) Add(r Release) {
	if r == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		r()
		return
	}
	s.releases = append(s.releases, r)
	s.mu.Unlock()
}

// Len returns the number of held releases.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.releases)
}

// Close runs every release, last added first. Only the first call has effect.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	rs := s.releases
	s.releases = nil
	s.mu.Unlock()

	for i := len(rs) - 1; i >= 0; i-- {
		rs[i]()
	}
}
