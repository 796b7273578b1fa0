package theme

import "sync"

// PreferenceSignal is the OS dark-mode preference capability: a live
// readable value plus change notification. Hosts with a real OS hook (a
// media query, a desktop setting watcher) adapt it to this interface;
// everyone else uses a StaticSignal.
type PreferenceSignal interface {
	// Dark returns the current OS-level preference.
	Dark() bool

	// Notify registers fn to run on every preference flip and returns a
	// cancel func that detaches it.
	Notify(fn func(dark bool)) (cancel func())
}

// StaticSignal is a settable in-process PreferenceSignal, used by tests and
// by hosts without an OS preference source.
type StaticSignal struct {
	mu        sync.Mutex
	dark      bool
	watchers  map[int]func(bool)
	nextWatch int
}

// NewStaticSignal creates a StaticSignal with the given initial preference.
func NewStaticSignal(dark bool) *StaticSignal {
	return &StaticSignal{
		dark:     dark,
		watchers: map[int]func(bool){},
	}
}

// Dark returns the current preference.
func (s *StaticSignal) Dark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dark
}

// Notify registers fn and returns its cancel func.
func (s *StaticSignal) Notify(fn func(dark bool)) func() {
	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// Set flips the preference and runs every registered watcher, simulating an
// OS-level preference change.
func (s *StaticSignal) Set(dark bool) {
	s.mu.Lock()
	if s.dark == dark {
		s.mu.Unlock()
		return
	}
	s.dark = dark
	fns := make([]func(bool), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(dark)
	}
}
