package engine

import (
	"sync"
	"time"
)

// Status is the aggregate sync status shown to the user.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Progress is the position within a running pass. Current counts the
// records already processed.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// RunState is a point-in-time view of the engine.
type RunState struct {
	Online bool   `json:"online"`
	Status Status `json:"status"`

	// Progress is non-nil only while a pass is running.
	Progress *Progress `json:"progress,omitempty"`

	// PendingCount is the number of pending and failed records for the
	// active tenant, as of the last refresh.
	PendingCount int `json:"pending_count"`

	// LastError describes the last pass that ended in StatusError.
	LastError string `json:"last_error,omitempty"`

	// LastSyncAt is when the last pass finished, whatever its outcome.
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

func (s RunState) clone() RunState {
	if s.Progress != nil {
		p := *s.Progress
		s.Progress = &p
	}
	if s.LastSyncAt != nil {
		t := *s.LastSyncAt
		s.LastSyncAt = &t
	}
	return s
}

// State holds the observable RunState and fans updates out to subscribers.
// The zero value is not usable; create one with NewState.
//
// Thread-safety: all methods are safe for concurrent use.
type State struct {
	mu      sync.Mutex
	current RunState
	subs    map[int]*stateQueue
	nextSub int
}

// NewState creates a State that starts offline and idle.
func NewState() *State {
	return &State{
		current: RunState{Status: StatusIdle},
		subs:    make(map[int]*stateQueue),
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// Subscribe returns a channel that receives every state change, in order,
// starting after the call. Delivery never blocks the engine: updates queue
// up per subscriber until read.
//
// Call cancel when done. It is safe to call more than once. The channel is
// closed shortly after cancel.
func (s *State) Subscribe() (<-chan RunState, func()) {
	q := newStateQueue()
	out := make(chan RunState)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = q
	s.mu.Unlock()

	go q.pump(out)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			q.Close()
		})
	}
	return out, cancel
}

// update applies fn to the state and publishes the result.
func (s *State) update(fn func(*RunState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.current)
	for _, q := range s.subs {
		q.Push(s.current.clone())
	}
}

func (s *State) setOnline(online bool) {
	s.update(func(rs *RunState) { rs.Online = online })
}

func (s *State) setPendingCount(n int) {
	s.update(func(rs *RunState) { rs.PendingCount = n })
}

func (s *State) setProgress(current, total int) {
	s.update(func(rs *RunState) { rs.Progress = &Progress{Current: current, Total: total} })
}
