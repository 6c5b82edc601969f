package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ticket identifies one report generation inside a Slot.
type Ticket struct {
	generation uint64
}

// Generation exposes the ticket number for logging.
func (t Ticket) Generation() uint64 { return t.generation }

// Slot holds the current report of a console workspace. Each submit takes a
// ticket; only the newest ticket may commit, so a late response to an older
// submit cannot overwrite a newer report.
type Slot struct {
	mu      sync.Mutex
	latest  uint64
	report  *Report
	sort    SortState
	touched time.Time
}

// Begin issues a ticket that supersedes all earlier ones.
func (s *Slot) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	s.touched = time.Now()
	return Ticket{generation: s.latest}
}

// Commit stores report when t is still the newest ticket and reports whether
// it did. A fresh report resets the sort state.
func (s *Slot) Commit(t Ticket, report *Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.generation != s.latest {
		return false
	}
	s.report = report
	s.sort = SortState{}
	s.touched = time.Now()
	return true
}

// Fail records the end of a failed generation. The previous report, if any,
// is left in place.
func (s *Slot) Fail(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.generation == s.latest
}

// Current returns the committed report, or nil.
func (s *Slot) Current() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Sort returns the stored sort state.
func (s *Slot) Sort() SortState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sort
}

// ToggleSort applies SortState.Toggle to the stored state and returns it.
func (s *Slot) ToggleSort(col Column) SortState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort = s.sort.Toggle(col)
	s.touched = time.Now()
	return s.sort
}

// Reset discards the report and invalidates outstanding tickets.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	s.report = nil
	s.sort = SortState{}
	s.touched = time.Now()
}

func (s *Slot) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Workspaces maps console workspace ids to their slots.
type Workspaces struct {
	mu    sync.Mutex
	slots map[string]*Slot
	idle  time.Duration
}

// NewWorkspaces builds a registry; slots untouched for longer than idle are
// evicted on access. Zero idle disables eviction.
func NewWorkspaces(idle time.Duration) *Workspaces {
	return &Workspaces{slots: make(map[string]*Slot), idle: idle}
}

// NewWorkspaceID returns a fresh workspace identifier.
func NewWorkspaceID() string {
	return uuid.NewString()
}

// Get returns the slot for id, creating it when missing.
func (w *Workspaces) Get(id string) *Slot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked()
	slot, ok := w.slots[id]
	if !ok {
		slot = &Slot{touched: time.Now()}
		w.slots[id] = slot
	}
	return slot
}

// Lookup returns the slot for id without creating one.
func (w *Workspaces) Lookup(id string) (*Slot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	slot, ok := w.slots[id]
	return slot, ok
}

// Len reports the number of live workspaces.
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.slots)
}

func (w *Workspaces) evictLocked() {
	if w.idle <= 0 {
		return
	}
	cutoff := time.Now().Add(-w.idle)
	for id, slot := range w.slots {
		if slot.lastTouched().Before(cutoff) {
			delete(w.slots, id)
		}
	}
}
