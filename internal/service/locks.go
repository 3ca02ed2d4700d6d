package service

import "sync"

// termLockGate coordinates timetable mutation per term. Generation takes
// the write side so nothing else touches the term mid-run; slot edits
// take the read side, so edits of different cells proceed concurrently
// but are rejected while a generation holds the term.
type termLockGate struct {
	mu    sync.Mutex
	terms map[string]*sync.RWMutex
}

func newTermLockGate() *termLockGate {
	return &termLockGate{terms: make(map[string]*sync.RWMutex)}
}

func (g *termLockGate) get(termID string) *sync.RWMutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.terms[termID]
	if !ok {
		lock = &sync.RWMutex{}
		g.terms[termID] = lock
	}
	return lock
}

// TryGenerate acquires exclusive ownership of a term. It never blocks;
// a false return means another generation run owns the term or edits
// are in flight.
func (g *termLockGate) TryGenerate(termID string) (release func(), ok bool) {
	lock := g.get(termID)
	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}

// TryEdit acquires shared ownership of a term for a single-slot edit.
// A false return means a generation run is in progress.
func (g *termLockGate) TryEdit(termID string) (release func(), ok bool) {
	lock := g.get(termID)
	if !lock.TryRLock() {
		return nil, false
	}
	return lock.RUnlock, true
}

// slotMutexes serializes edits that target the same (term, day, slot)
// cell so conflict checks and writes are atomic per cell.
type slotMutexes struct {
	mu    sync.Mutex
	slots map[string]*sync.Mutex
}

func newSlotMutexes() *slotMutexes {
	return &slotMutexes{slots: make(map[string]*sync.Mutex)}
}

func (s *slotMutexes) Lock(key string) func() {
	s.mu.Lock()
	lock, ok := s.slots[key]
	if !ok {
		lock = &sync.Mutex{}
		s.slots[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
