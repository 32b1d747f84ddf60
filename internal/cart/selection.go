package cart

import (
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/types"
)

// Selection is the set of product ids marked for checkout. It is keyed by
// identity, so removing a line never shifts what else is selected.
type Selection map[types.ID]struct{}

func NewSelection(ids ...types.ID) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Selection) Has(id types.ID) bool {
	_, ok := s[id]
	return ok
}

func (s Selection) Len() int { return len(s) }

func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// restrictTo drops ids that have no line in c.
func (s Selection) restrictTo(c Cart) Selection {
	out := make(Selection, len(s))
	for _, line := range c {
		if s.Has(line.ID) {
			out[line.ID] = struct{}{}
		}
	}
	return out
}

// SelectionRegistry keeps each client's selection in process memory. Entries
// idle for longer than the TTL are dropped on the next Sweep.
type SelectionRegistry struct {
	mu      sync.Mutex
	entries map[string]selectionEntry
	idleTTL time.Duration
	now     func() time.Time
}

type selectionEntry struct {
	ids      Selection
	lastSeen time.Time
}

func NewSelectionRegistry(idleTTL time.Duration) *SelectionRegistry {
	return &SelectionRegistry{
		entries: make(map[string]selectionEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Load returns a copy of the client's selection (empty when unknown or expired).
func (r *SelectionRegistry) Load(clientID string) Selection {
	if r == nil {
		return Selection{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[clientID]
	if !ok || r.expired(entry) {
		delete(r.entries, clientID)
		return Selection{}
	}
	entry.lastSeen = r.now()
	r.entries[clientID] = entry
	return entry.ids.Clone()
}

func (r *SelectionRegistry) Store(clientID string, sel Selection) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sel.Len() == 0 {
		delete(r.entries, clientID)
		return
	}
	r.entries[clientID] = selectionEntry{ids: sel.Clone(), lastSeen: r.now()}
}

func (r *SelectionRegistry) Forget(clientID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, clientID)
}

// Sweep removes expired entries and reports how many were dropped.
func (r *SelectionRegistry) Sweep() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, entry := range r.entries {
		if r.expired(entry) {
			delete(r.entries, id)
			dropped++
		}
	}
	return dropped
}

func (r *SelectionRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *SelectionRegistry) expired(entry selectionEntry) bool {
	return r.idleTTL > 0 && r.now().Sub(entry.lastSeen) > r.idleTTL
}
