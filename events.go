package keel

import "sync"

// HierarchyListener receives notifications about a kernel. Callbacks fire
// synchronously on the goroutine performing the mutation; nil callbacks are
// skipped. The kernel passed to the hierarchy callbacks is the kernel the
// listener is subscribed on.
type HierarchyListener struct {
	AddedAsChild   func(child *Kernel)
	RemovedAsChild func(child *Kernel)
	Registered     func(h *Handler)
}

type subscription struct {
	id       uint64
	listener HierarchyListener
}

// listenerSet holds the subscribers of one kernel.
type listenerSet struct {
	entries []subscription
	next    uint64
	mu      sync.RWMutex
}

func newListenerSet() *listenerSet {
	return &listenerSet{}
}

// subscribe adds l and returns the function that removes it. Calling the
// returned function more than once is a no-op.
func (s *listenerSet) subscribe(l HierarchyListener) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	s.entries = append(s.entries, subscription{id: id, listener: l})
	s.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *listenerSet) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)

			return
		}
	}
}

func (s *listenerSet) snapshot() []HierarchyListener {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HierarchyListener, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.listener
	}

	return out
}

func (s *listenerSet) addedAsChild(child *Kernel) {
	for _, l := range s.snapshot() {
		if l.AddedAsChild != nil {
			l.AddedAsChild(child)
		}
	}
}

func (s *listenerSet) removedAsChild(child *Kernel) {
	for _, l := range s.snapshot() {
		if l.RemovedAsChild != nil {
			l.RemovedAsChild(child)
		}
	}
}

func (s *listenerSet) registered(h *Handler) {
	for _, l := range s.snapshot() {
		if l.Registered != nil {
			l.Registered(h)
		}
	}
}

func (s *listenerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
