package state

import (
	"reflect"
	"testing"
)

func TestTx_RollbackRestoresExactState(t *testing.T) {
	s := NewStore()
	s.Set(K("machines"), []machine{{ID: 1, Hours: 10}, {ID: 2, Hours: 20}}, 0)
	s.Set(K("machine", "1"), machine{ID: 1, Hours: 10}, 0)
	s.Invalidate(K("machine", "1"))

	before := map[string]Entry{}
	for _, k := range []Key{K("machines"), K("machine", "1")} {
		e, _ := s.Get(k)
		before[k.String()] = e
	}

	tx := s.Begin(K("machines"), K("machine"))
	s.Update(K("machines"), func(cur any) (any, bool) {
		list := cur.([]machine)
		next := append([]machine(nil), list...)
		next = append(next, machine{ID: -1})
		return next, true
	})
	s.Set(K("machine", "1"), machine{ID: 1, Hours: 99}, 0)
	s.Set(K("machine", "-1"), machine{ID: -1}, 0)
	tx.Rollback()

	for _, k := range []Key{K("machines"), K("machine", "1")} {
		got, ok := s.Get(k)
		if !ok {
			t.Fatalf("%v missing after rollback", k)
		}
		if !reflect.DeepEqual(got, before[k.String()]) {
			t.Fatalf("%v after rollback = %+v, want %+v", k, got, before[k.String()])
		}
	}
	if _, ok := s.Get(K("machine", "-1")); ok {
		t.Fatalf("entry created inside the transaction survived rollback")
	}
}

func TestTx_BeginCancelsInFlightFetches(t *testing.T) {
	s := NewStore()
	ctx, tok := s.BeginFetch(K("maintenance-parts"))
	tx := s.Begin(K("maintenance-parts"))
	defer tx.Commit()

	if ctx.Err() == nil {
		t.Fatalf("Begin did not cancel overlapping fetch")
	}
	if s.EndFetch(tok, "stale", nil, 0) {
		t.Fatalf("cancelled fetch stored")
	}
}

func TestTx_RollbackAfterCommitIsNoop(t *testing.T) {
	s := NewStore()
	s.Set(K("machines"), "v1", 0)

	tx := s.Begin(K("machines"))
	s.Set(K("machines"), "v2", 0)
	tx.Commit()
	tx.Rollback()

	if e, _ := s.Get(K("machines")); e.Data != "v2" {
		t.Fatalf("Data = %v after commit, want v2", e.Data)
	}
}

func TestTx_RollbackIgnoresKeysOutsidePrefixes(t *testing.T) {
	s := NewStore()
	tx := s.Begin(K("machines"))
	s.Set(K("users"), "added", 0)
	tx.Rollback()

	if _, ok := s.Get(K("users")); !ok {
		t.Fatalf("rollback removed a key outside its prefixes")
	}
}

func TestTx_OverlappingRollbacksInvalidateRestoredEntries(t *testing.T) {
	s := NewStore()
	s.Set(K("machines"), []machine{{ID: 1}}, 0)
	add := func(id int64) {
		s.Update(K("machines"), func(cur any) (any, bool) {
			return append(append([]machine(nil), cur.([]machine)...), machine{ID: id}), true
		})
	}

	first := s.Begin(K("machines"))
	add(-1)
	second := s.Begin(K("machines"))
	add(-2)

	first.Rollback()
	second.Rollback()

	got, _ := s.Get(K("machines"))
	if !got.Invalidated {
		t.Fatalf("entry restored from an overlapping snapshot not invalidated: %+v", got)
	}

	// A later transaction on its own restores exactly again.
	before, _ := s.Get(K("machines"))
	third := s.Begin(K("machines"))
	add(-3)
	third.Rollback()
	after, _ := s.Get(K("machines"))
	if !reflect.DeepEqual(after, before) {
		t.Fatalf("lone rollback = %+v, want %+v", after, before)
	}
}

func TestTx_DisjointTransactionsRestoreExactly(t *testing.T) {
	s := NewStore()
	s.Set(K("machines"), []machine{{ID: 1}}, 0)
	s.Set(K("parts"), []machine{{ID: 9}}, 0)
	before, _ := s.Get(K("machines"))

	a := s.Begin(K("machines"))
	b := s.Begin(K("parts"))
	s.Set(K("machines"), []machine{{ID: 1}, {ID: -1}}, 0)
	a.Rollback()
	b.Commit()

	after, _ := s.Get(K("machines"))
	if !reflect.DeepEqual(after, before) {
		t.Fatalf("rollback = %+v, want %+v", after, before)
	}
}
