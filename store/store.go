// Package store holds the tab-lifetime view state: the fetched property
// collection, the search term, and the loading flag. The displayed view is
// always derived, never stored.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"property-shell/models"
)

// API is the slice of the gateway the store depends on.
type API interface {
	ListProperties(ctx context.Context) ([]models.Property, error)
	SearchByLocation(ctx context.Context, term string) ([]models.Property, error)
}

// Snapshot is the full state handed to subscribers. Visible is a pure
// function of the other fields plus any server search overlay; consumers must
// read whole snapshots, never cache sub-fields across updates.
type Snapshot struct {
	Properties []models.Property
	Visible    []models.Property
	SearchTerm string
	Loading    bool
}

// Store is an explicitly constructed state container. Each action replaces
// state atomically and notifies subscribers synchronously once it settles.
type Store struct {
	api API

	mu            sync.Mutex
	properties    []models.Property
	searchTerm    string
	loading       bool
	serverResults []models.Property // non-nil only after a server-side search
	cancelSearch  context.CancelFunc
	searchSeq     uint64

	subs    map[int]func(Snapshot)
	nextSub int
}

func New(api API) *Store {
	return &Store{
		api:  api,
		subs: make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn for every settled action and returns its
// unsubscribe function.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state with the derived visible list.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	var visible []models.Property
	if s.serverResults != nil {
		visible = append(visible, s.serverResults...)
	} else {
		visible = Project(s.properties, s.searchTerm)
	}
	return Snapshot{
		Properties: append([]models.Property(nil), s.properties...),
		Visible:    visible,
		SearchTerm: s.searchTerm,
		Loading:    s.loading,
	}
}

// notifyLocked computes a snapshot under the lock and delivers it after
// releasing it, so subscribers may call back into the store.
func (s *Store) notifyLocked() {
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	s.mu.Lock()
}

// Load fetches the full collection and replaces the state. Concurrent calls
// are not deduplicated: two in-flight loads are two fetches.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.notifyLocked()
	s.mu.Unlock()

	properties, err := s.api.ListProperties(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.notifyLocked()
		return fmt.Errorf("loading properties: %w", err)
	}
	s.properties = properties
	s.serverResults = nil
	s.notifyLocked()
	return nil
}

// SetSearchTerm records the term without touching the network. A changed
// term invalidates any server search overlay and aborts an in-flight search,
// so the visible list re-derives from the new term alone.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if term != s.searchTerm {
		if s.cancelSearch != nil {
			s.cancelSearch()
			s.cancelSearch = nil
		}
		s.searchSeq++
		s.serverResults = nil
		s.loading = false
	}
	s.searchTerm = term
	s.notifyLocked()
}

// Search runs the server-side policy. An empty or whitespace term restores
// the unfiltered collection without touching the network. A newer Search
// cancels the previous in-flight request, so results apply in term-issuance
// order, never in response-arrival order.
func (s *Store) Search(ctx context.Context, term string) error {
	trimmed := strings.TrimSpace(term)

	s.mu.Lock()
	if s.cancelSearch != nil {
		s.cancelSearch()
		s.cancelSearch = nil
	}
	s.searchTerm = term

	if trimmed == "" {
		s.searchSeq++
		s.serverResults = nil
		s.loading = false
		s.notifyLocked()
		s.mu.Unlock()
		return nil
	}

	sctx, cancel := context.WithCancel(ctx)
	s.cancelSearch = cancel
	s.searchSeq++
	seq := s.searchSeq
	s.loading = true
	s.notifyLocked()
	s.mu.Unlock()

	results, err := s.api.SearchByLocation(sctx, trimmed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.searchSeq {
		// Superseded by a newer term; its outcome owns the view now.
		return nil
	}
	s.cancelSearch = nil
	s.loading = false
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Caller abandoned the search; still deliver the settled
			// loading=false snapshot.
			s.notifyLocked()
			return nil
		}
		s.notifyLocked()
		return fmt.Errorf("searching properties: %w", err)
	}
	log.Printf("Search %q returned %d properties", trimmed, len(results))
	s.serverResults = results
	s.notifyLocked()
	return nil
}
