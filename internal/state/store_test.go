package state

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type machine struct {
	ID    int64
	Hours int
}

func TestKeyPrefixAndEquality(t *testing.T) {
	k := K("parts-list", "M-100")
	if !k.HasPrefix(K("parts-list")) {
		t.Fatalf("%v should have prefix [parts-list]", k)
	}
	if k.HasPrefix(K("parts")) {
		t.Fatalf("%v should not have prefix [parts]", k)
	}
	if K("parts").HasPrefix(K("parts", "1")) {
		t.Fatalf("shorter key cannot have a longer prefix")
	}
	if !k.Equal(K("parts-list", "M-100")) || k.Equal(K("parts-list")) {
		t.Fatalf("Equal mismatch for %v", k)
	}
	if k.String() != "[parts-list M-100]" {
		t.Fatalf("String() = %q", k.String())
	}
}

func TestStore_SetGetAndStaleness(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Set(K("machines"), []machine{{ID: 1}}, time.Minute)
	e, ok := s.Get(K("machines"))
	if !ok || !e.HasData() {
		t.Fatalf("Get = %+v, %v; want data", e, ok)
	}
	if e.IsStale(2*time.Minute, now.Add(time.Minute)) {
		t.Fatalf("entry stale after 1m with 2m window")
	}
	if !e.IsStale(2*time.Minute, now.Add(2*time.Minute)) {
		t.Fatalf("entry fresh at the 2m boundary, want stale")
	}
	if _, ok := s.Get(K("machine", "1")); ok {
		t.Fatalf("unexpected entry for unknown key")
	}
}

func TestStore_InvalidateIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Set(K("maintenance-parts"), []int{1, 2}, 0)
	s.Set(K("parts-list", "M-1"), "list", 0)
	s.Set(K("machines"), "untouched", 0)

	if n := s.Invalidate(K("parts-list")); n != 1 {
		t.Fatalf("Invalidate marked %d entries, want 1", n)
	}
	once, _ := s.Get(K("parts-list", "M-1"))

	s.Invalidate(K("parts-list"))
	twice, _ := s.Get(K("parts-list", "M-1"))

	if once.Invalidated != twice.Invalidated || !twice.Invalidated {
		t.Fatalf("Invalidated once=%v twice=%v, want both true", once.Invalidated, twice.Invalidated)
	}
	if !reflect.DeepEqual(once.Data, twice.Data) || once.UpdatedAt != twice.UpdatedAt {
		t.Fatalf("second invalidation changed observable state")
	}
	if !twice.IsStale(time.Hour, time.Now()) {
		t.Fatalf("invalidated entry not stale")
	}

	other, _ := s.Get(K("machines"))
	if other.Invalidated {
		t.Fatalf("entry outside prefix was invalidated")
	}
}

func TestStore_EndFetchDropsWriteAfterOptimisticUpdate(t *testing.T) {
	s := NewStore()
	s.Set(K("machine", "1"), machine{ID: 1, Hours: 10}, 0)

	_, tok := s.BeginFetch(K("machine", "1"))
	s.Update(K("machine", "1"), func(any) (any, bool) { return machine{ID: 1, Hours: 99}, true })

	if stored := s.EndFetch(tok, machine{ID: 1, Hours: 10}, nil, 0); stored {
		t.Fatalf("EndFetch stored a response that began before the optimistic write")
	}
	e, _ := s.Get(K("machine", "1"))
	if e.Data.(machine).Hours != 99 {
		t.Fatalf("optimistic value clobbered: %+v", e.Data)
	}
}

func TestStore_CancelQueriesCancelsContext(t *testing.T) {
	s := NewStore()
	ctx, tok := s.BeginFetch(K("maintenance-part", "7"))
	_, other := s.BeginFetch(K("machines"))

	if n := s.CancelQueries(K("maintenance-part")); n != 1 {
		t.Fatalf("CancelQueries = %d, want 1", n)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("fetch context not cancelled")
	}
	if s.EndFetch(tok, "late", nil, 0) {
		t.Fatalf("cancelled fetch result was stored")
	}
	if !s.EndFetch(other, "ok", nil, 0) {
		t.Fatalf("unrelated fetch result was dropped")
	}
}

func TestStore_EndFetchErrorKeepsData(t *testing.T) {
	s := NewStore()
	s.Set(K("machines"), "v1", 0)

	_, tok := s.BeginFetch(K("machines"))
	boom := errors.New("boom")
	s.EndFetch(tok, nil, boom, 0)

	e, _ := s.Get(K("machines"))
	if e.Data != "v1" {
		t.Fatalf("Data = %v, want v1 kept", e.Data)
	}
	if !errors.Is(e.Err, boom) || e.ConsecutiveFailures != 1 {
		t.Fatalf("Err = %v failures = %d, want boom/1", e.Err, e.ConsecutiveFailures)
	}

	_, tok = s.BeginFetch(K("machines"))
	s.EndFetch(tok, "v2", nil, 0)
	e, _ = s.Get(K("machines"))
	if e.Err != nil || e.ConsecutiveFailures != 0 || e.Data != "v2" {
		t.Fatalf("successful fetch did not reset entry: %+v", e)
	}
}

func TestStore_InvalidationDuringFetchStaysStale(t *testing.T) {
	s := NewStore()
	s.Set(K("machines"), "v1", 0)

	_, tok := s.BeginFetch(K("machines"))
	s.Invalidate(K("machines"))
	if !s.EndFetch(tok, "v2", nil, 0) {
		t.Fatalf("EndFetch dropped result")
	}
	e, _ := s.Get(K("machines"))
	if e.Data != "v2" || !e.Invalidated {
		t.Fatalf("entry = %+v, want v2 still invalidated", e)
	}

	_, tok = s.BeginFetch(K("machines"))
	s.EndFetch(tok, "v3", nil, 0)
	e, _ = s.Get(K("machines"))
	if e.Invalidated {
		t.Fatalf("fetch started after invalidation should clear the marker")
	}
}

func TestStore_SubscribeReceivesChangedKeys(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Set(K("machine", "3"), "x", 0)
	select {
	case k := <-ch:
		if !k.Equal(K("machine", "3")) {
			t.Fatalf("notified key = %v, want [machine 3]", k)
		}
	case <-time.After(time.Second):
		t.Fatalf("no notification")
	}
}

func TestStore_ClearDropsEverything(t *testing.T) {
	s := NewStore()
	s.Set(K("machines"), "x", 0)
	ctx, _ := s.BeginFetch(K("machines"))
	s.RecordPoll(errors.New("offline"))

	s.Clear()

	if _, ok := s.Get(K("machines")); ok {
		t.Fatalf("entry survived Clear")
	}
	if ctx.Err() == nil {
		t.Fatalf("in-flight fetch not cancelled by Clear")
	}
	if s.InFlight() != 0 {
		t.Fatalf("InFlight = %d after Clear", s.InFlight())
	}
	if h := s.Health(); h.ConsecutiveFailures != 0 || h.LastError != nil {
		t.Fatalf("health not reset: %+v", h)
	}

	// The store stays usable after Clear.
	s.Set(K("machines"), "y", 0)
	if e, ok := s.Get(K("machines")); !ok || e.Data != "y" {
		t.Fatalf("store unusable after Clear")
	}
}

func TestStore_RecordPollTracksOffline(t *testing.T) {
	s := NewStore()
	s.RecordPoll(errors.New("a"))
	if s.Health().IsOffline() {
		t.Fatalf("offline after one failure")
	}
	s.RecordPoll(errors.New("b"))
	if !s.Health().IsOffline() {
		t.Fatalf("not offline after two failures")
	}
	s.RecordPoll(nil)
	h := s.Health()
	if h.IsOffline() || h.LastError != nil {
		t.Fatalf("health after success = %+v", h)
	}
}

func TestStore_GCWindowExpiresEntries(t *testing.T) {
	s := NewStore()
	s.Set(K("machines"), "x", 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	if _, ok := s.Get(K("machines")); ok {
		t.Fatalf("entry survived its GC window")
	}
}
