package state

// Tx is an optimistic write in three phases: Begin snapshots every entry
// under the given prefixes, the caller applies tentative writes with Update,
// Set or Delete, and the transaction ends with Commit or Rollback.
type Tx struct {
	s        *Store
	prefixes []Key
	saved    map[string]record
	done     bool
	// overlapped is set when another open transaction covered any of the
	// same keys. Guarded by s.mu.
	overlapped bool
}

// Begin cancels in-flight fetches under prefixes, so a stale response
// cannot overwrite the optimistic value, and snapshots those entries.
func (s *Store) Begin(prefixes ...Key) *Tx {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(prefixes)
	saved := make(map[string]record)
	for _, prefix := range prefixes {
		for _, rec := range s.scan(prefix) {
			saved[rec.key.ID()] = rec
		}
	}
	tx := &Tx{s: s, prefixes: append([]Key(nil), prefixes...), saved: saved}
	for other := range s.open {
		if prefixesOverlap(other.prefixes, tx.prefixes) {
			other.overlapped = true
			tx.overlapped = true
		}
	}
	s.open[tx] = struct{}{}
	return tx
}

// Prefixes returns the key prefixes covered by the transaction.
func (tx *Tx) Prefixes() []Key {
	return tx.prefixes
}

// Commit ends the transaction keeping the optimistic writes. Callers follow
// it with Invalidate so the next read confirms against the backend.
func (tx *Tx) Commit() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	tx.done = true
	delete(tx.s.open, tx)
}

// Rollback restores every covered entry to its state at Begin. Entries that
// did not exist at Begin are removed. Calling Rollback after Commit or a
// previous Rollback does nothing.
//
// When another transaction on the same keys was open at any point, the
// snapshot may hold that transaction's provisional writes, so the restored
// entries are also marked Invalidated.
func (tx *Tx) Rollback() {
	s := tx.s
	s.mu.Lock()
	if tx.done {
		s.mu.Unlock()
		return
	}
	tx.done = true
	delete(s.open, tx)

	var touched []Key
	for _, prefix := range tx.prefixes {
		for _, rec := range s.scan(prefix) {
			if _, ok := tx.saved[rec.key.ID()]; !ok {
				s.entries.Delete(rec.key.ID())
				touched = append(touched, rec.key)
			}
		}
	}
	// Fetches that began during the transaction must not land on the
	// restored entries.
	s.cancelLocked(tx.prefixes)
	for _, rec := range tx.saved {
		if tx.overlapped {
			rec.entry.Invalidated = true
			rec.entry.invalidatedSeq = s.bump()
		}
		s.put(rec)
		touched = append(touched, rec.key)
	}
	s.mu.Unlock()

	for _, k := range touched {
		s.notify(k)
	}
}

func prefixesOverlap(a, b []Key) bool {
	for _, x := range a {
		for _, y := range b {
			if x.HasPrefix(y) || y.HasPrefix(x) {
				return true
			}
		}
	}
	return false
}
