package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"property-shell/models"
)

// fakeAPI is a hand-rolled gateway double. Search calls block until released
// so tests can control response-arrival order.
type fakeAPI struct {
	mu          sync.Mutex
	listCalls   int32
	properties  []models.Property
	listErr     error
	searchGates map[string]chan []models.Property
}

func newFakeAPI(properties []models.Property) *fakeAPI {
	return &fakeAPI{
		properties:  properties,
		searchGates: make(map[string]chan []models.Property),
	}
}

func (f *fakeAPI) ListProperties(ctx context.Context) ([]models.Property, error) {
	atomic.AddInt32(&f.listCalls, 1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Property(nil), f.properties...), nil
}

// gate arranges for SearchByLocation(term) to block until the returned
// channel delivers its result.
func (f *fakeAPI) gate(term string) chan []models.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan []models.Property, 1)
	f.searchGates[term] = ch
	return ch
}

func (f *fakeAPI) SearchByLocation(ctx context.Context, term string) ([]models.Property, error) {
	f.mu.Lock()
	gate := f.searchGates[term]
	f.mu.Unlock()

	if gate == nil {
		return Project(f.properties, term), nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-gate:
		return result, nil
	}
}

func TestLoadReplacesCollectionAndTogglesLoading(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)

	var loadingSeen []bool
	s.Subscribe(func(snap Snapshot) {
		loadingSeen = append(loadingSeen, snap.Loading)
	})

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Properties) != 5 {
		t.Fatalf("expected 5 properties, got %d", len(snap.Properties))
	}
	if snap.Loading {
		t.Fatal("loading should be false after Load settles")
	}
	if len(loadingSeen) != 2 || !loadingSeen[0] || loadingSeen[1] {
		t.Fatalf("expected loading true then false, saw %v", loadingSeen)
	}
}

func TestLoadSurfacesGatewayError(t *testing.T) {
	api := newFakeAPI(nil)
	api.listErr = errors.New("boom")
	s := New(api)

	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected Load to fail")
	}
	if s.Snapshot().Loading {
		t.Fatal("loading must reset after a failed Load")
	}
}

func TestConcurrentLoadsAreNotDeduplicated(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Load(context.Background())
		}()
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&api.listCalls); calls != 2 {
		t.Fatalf("expected 2 fetches, got %d", calls)
	}
}

func TestSetSearchTermDerivesVisibleWithoutIO(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s.SetSearchTerm("california")

	snap := s.Snapshot()
	if len(snap.Visible) != 2 {
		t.Fatalf("expected 2 visible properties, got %d", len(snap.Visible))
	}
	if snap.Visible[0].ID != 2 {
		t.Fatalf("expected highest-rated match first, got %d", snap.Visible[0].ID)
	}
	if calls := atomic.LoadInt32(&api.listCalls); calls != 1 {
		t.Fatalf("SetSearchTerm must not fetch, saw %d list calls", calls)
	}
}

func TestSearchEmptyTermRestoresCollectionWithoutNetwork(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.Search(context.Background(), "california"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(s.Snapshot().Visible) != 2 {
		t.Fatal("precondition: search should narrow the view")
	}

	if err := s.Search(context.Background(), "   "); err != nil {
		t.Fatalf("empty Search failed: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Visible) != 5 {
		t.Fatalf("expected full collection restored, got %d", len(snap.Visible))
	}
}

func TestSupersedingSearchCancelsPriorRequest(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	gateA := api.gate("a")
	gateAB := api.gate("ab")

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Search(context.Background(), "a") }()

	// Let the first search reach the gateway before superseding it.
	time.Sleep(20 * time.Millisecond)

	secondDone := make(chan error, 1)
	go func() { secondDone <- s.Search(context.Background(), "ab") }()
	time.Sleep(20 * time.Millisecond)

	// Resolve both; the stale "a" result arrives after "ab".
	gateAB <- []models.Property{{ID: 42, Location: "ab-land"}}
	if err := <-secondDone; err != nil {
		t.Fatalf("superseding search failed: %v", err)
	}
	gateA <- []models.Property{{ID: 7, Location: "a-land"}}
	if err := <-firstDone; err != nil {
		t.Fatalf("superseded search should settle quietly, got %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Visible) != 1 || snap.Visible[0].ID != 42 {
		t.Fatalf("view must reflect the newest term only, got %v", snap.Visible)
	}
}

func TestEmptyTermSupersedeDeliversSettledSnapshot(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var mu sync.Mutex
	var last Snapshot
	s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})

	api.gate("a")
	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Search(context.Background(), "a") }()
	time.Sleep(20 * time.Millisecond)

	// Clearing the term cancels the in-flight search; the blocked call
	// unblocks on its cancelled context.
	if err := s.Search(context.Background(), "   "); err != nil {
		t.Fatalf("empty Search failed: %v", err)
	}
	if err := <-firstDone; err != nil {
		t.Fatalf("superseded search should settle quietly, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if last.Loading {
		t.Fatal("the last delivered snapshot must have loading settled")
	}
	if len(last.Visible) != 5 {
		t.Fatalf("expected the full collection restored, got %d", len(last.Visible))
	}
	if s.Snapshot().Loading {
		t.Fatal("loading must be false after the empty-term supersede")
	}
}

func TestSetSearchTermInvalidatesServerOverlay(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.Search(context.Background(), "california"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(s.Snapshot().Visible) != 2 {
		t.Fatal("precondition: search should narrow the view")
	}

	s.SetSearchTerm("sydney")

	snap := s.Snapshot()
	if len(snap.Visible) != 1 || snap.Visible[0].ID != 5 {
		t.Fatalf("view must derive from the new term, got %v", snap.Visible)
	}
}

func TestSetSearchTermAbortsInFlightSearch(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	api.gate("california")
	searchDone := make(chan error, 1)
	go func() { searchDone <- s.Search(context.Background(), "california") }()
	time.Sleep(20 * time.Millisecond)

	s.SetSearchTerm("sydney")
	if err := <-searchDone; err != nil {
		t.Fatalf("aborted search should settle quietly, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Loading {
		t.Fatal("loading must settle when a term change aborts the search")
	}
	if len(snap.Visible) != 1 || snap.Visible[0].ID != 5 {
		t.Fatalf("late server results must not land after a term change, got %v", snap.Visible)
	}
}

func TestFindByID(t *testing.T) {
	api := newFakeAPI(sampleProperties())
	s := New(api)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, err := s.FindByID("2")
	if err != nil {
		t.Fatalf("expected a match for id 2: %v", err)
	}
	if got.ID != 2 {
		t.Fatalf("expected property 2, got %d", got.ID)
	}

	if _, err := s.FindByID("99"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for id 99, got %v", err)
	}
	if _, err := s.FindByID("not-a-number"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unparsable id, got %v", err)
	}
}

func TestFindByIDBeforeLoadMisses(t *testing.T) {
	s := New(newFakeAPI(nil))

	if _, err := s.FindByID("1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("deep link before load must miss, got %v", err)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := New(newFakeAPI(nil))

	calls := 0
	unsubscribe := s.Subscribe(func(Snapshot) { calls++ })
	s.SetSearchTerm("x")
	unsubscribe()
	s.SetSearchTerm("y")

	if calls != 1 {
		t.Fatalf("expected exactly one notification, got %d", calls)
	}
}
