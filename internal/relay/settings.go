package relay

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/flemzord/relayctl/pkg/message"
)

// ErrOwnerRemoval is returned when removing the owner from the allow-list.
var ErrOwnerRemoval = errors.New("relay: the owner cannot be removed")

// Settings is the process-lifetime relay state shared by the command
// handlers, the live relay, and the replay loop.
type Settings struct {
	owner int64

	mu          sync.RWMutex
	authorized  map[int64]struct{}
	source      message.ChatRef
	destination message.ChatRef
	filters     Filters
	live        bool
	lastRun     *Result

	cancel  CancelToken
	running atomic.Bool
}

// NewSettings creates Settings whose allow-list holds owner and allow.
func NewSettings(owner int64, allow ...int64) *Settings {
	s := &Settings{
		owner:      owner,
		authorized: map[int64]struct{}{owner: {}},
	}
	for _, id := range allow {
		s.authorized[id] = struct{}{}
	}
	return s
}

// Owner returns the fixed owner id.
func (s *Settings) Owner() int64 { return s.owner }

// IsOwner reports whether id is the owner.
func (s *Settings) IsOwner(id int64) bool { return id == s.owner }

// IsAuthorized reports whether id is on the allow-list.
func (s *Settings) IsAuthorized(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.authorized[id]
	return ok
}

// AddUser authorizes id. It reports false if id was already authorized.
func (s *Settings) AddUser(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authorized[id]; ok {
		return false
	}
	s.authorized[id] = struct{}{}
	return true
}

// RemoveUser revokes id. It reports false if id was not authorized.
func (s *Settings) RemoveUser(id int64) (bool, error) {
	if id == s.owner {
		return false, ErrOwnerRemoval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authorized[id]; !ok {
		return false, nil
	}
	delete(s.authorized, id)
	return true, nil
}

// Users returns the authorized ids in ascending order.
func (s *Settings) Users() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.authorized))
	for id := range s.authorized {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Settings) SetSource(ref message.ChatRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = ref
}

func (s *Settings) Source() message.ChatRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Settings) SetDestination(ref message.ChatRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destination = ref
}

func (s *Settings) Destination() message.ChatRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destination
}

// SetupComplete reports whether both source and destination are set.
func (s *Settings) SetupComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.source.IsZero() && !s.destination.IsZero()
}

// Filters returns a copy of the current filter set.
func (s *Settings) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// ToggleFilter flips c and returns its new value.
func (s *Settings) ToggleFilter(c Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	on := !s.filters.Enabled(c)
	s.filters.Set(c, on)
	return on
}

// SetFilter sets c explicitly.
func (s *Settings) SetFilter(c Category, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.Set(c, on)
}

func (s *Settings) SetLive(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = on
}

func (s *Settings) Live() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Cancel returns the token the replay loop polls.
func (s *Settings) Cancel() *CancelToken { return &s.cancel }

// Running reports whether a bulk run is executing.
func (s *Settings) Running() bool { return s.running.Load() }

func (s *Settings) beginRun() bool { return s.running.CompareAndSwap(false, true) }

func (s *Settings) endRun(res Result) {
	s.mu.Lock()
	s.lastRun = &res
	s.mu.Unlock()
	s.running.Store(false)
}

// LastRun returns the summary of the most recent finished run.
func (s *Settings) LastRun() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return Result{}, false
	}
	return *s.lastRun, true
}

// Snapshot is a consistent copy of Settings for status rendering.
type Snapshot struct {
	Source          message.ChatRef
	Destination     message.ChatRef
	Filters         Filters
	Live            bool
	Authorized      int
	CancelRequested bool
	Running         bool
	LastRun         *Result
}

// Snapshot copies the current state.
func (s *Settings) Snapshot() Snapshot {
	running := s.Running()

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Source:          s.source,
		Destination:     s.destination,
		Filters:         s.filters,
		Live:            s.live,
		Authorized:      len(s.authorized),
		CancelRequested: s.cancel.Requested(),
		Running:         running,
	}
	if s.lastRun != nil {
		res := *s.lastRun
		snap.LastRun = &res
	}
	return snap
}
