package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// DefaultGCTime is how long an entry survives after its last write when
	// the caller does not pass a GC window.
	DefaultGCTime = 5 * time.Minute

	cleanupInterval = time.Minute
	keySeparator    = "\x1f"
	subscriberBuf   = 64
)

// Key identifies a cached query result, e.g. {"machine", "42"}.
type Key []string

// K builds a Key.
func K(parts ...string) Key { return Key(parts) }

// ID returns a flat identifier suitable as a map key.
func (k Key) ID() string { return strings.Join(k, keySeparator) }

// String renders the key for logs.
func (k Key) String() string { return "[" + strings.Join(k, " ") + "]" }

// HasPrefix reports whether prefix matches the leading elements of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both keys have identical elements.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// Entry is one cached query result.
type Entry struct {
	Data                any
	Err                 error
	UpdatedAt           time.Time // last successful fetch
	Invalidated         bool      // marked stale by a mutation
	ConsecutiveFailures int

	version        uint64
	invalidatedSeq uint64
}

// HasData reports whether the entry holds data.
func (e Entry) HasData() bool { return e.Data != nil }

// IsStale reports whether the entry should be refetched under staleTime.
func (e Entry) IsStale(staleTime time.Duration, now time.Time) bool {
	if e.Invalidated || e.UpdatedAt.IsZero() {
		return true
	}
	return now.Sub(e.UpdatedAt) >= staleTime
}

type record struct {
	key    Key
	entry  Entry
	gcTime time.Duration
}

type fetchReg struct {
	key    Key
	cancel context.CancelFunc
}

// Store is the query cache shared by every view of one session. It is
// created at startup and cleared on logout.
//
// Data placed in the store must be treated as immutable: writers replace
// values, they never modify a slice or struct they read from the store.
// Rollback relies on this to restore snapshots exactly.
type Store struct {
	mu       sync.Mutex
	entries  *cache.Cache
	seq      uint64
	fetchSeq uint64
	inflight map[uint64]fetchReg
	open     map[*Tx]struct{}
	base     context.Context
	stop     context.CancelFunc

	subMu   sync.Mutex
	subs    map[int]chan Key
	nextSub int

	health Health
	now    func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	base, stop := context.WithCancel(context.Background())
	return &Store{
		entries:  cache.New(DefaultGCTime, cleanupInterval),
		inflight: make(map[uint64]fetchReg),
		open:     make(map[*Tx]struct{}),
		base:     base,
		stop:     stop,
		subs:     make(map[int]chan Key),
		now:      time.Now,
	}
}

// Get returns the entry for key.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lookup(key)
	return rec.entry, ok
}

// Keys returns the keys of all live entries under prefix.
func (s *Store) Keys(prefix Key) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Key
	for _, rec := range s.scan(prefix) {
		out = append(out, rec.key)
	}
	return out
}

// Set stores fresh data for key, clearing any error or stale marker.
func (s *Store) Set(key Key, data any, gcTime time.Duration) {
	s.mu.Lock()
	rec, _ := s.lookup(key)
	rec.key = key
	rec.gcTime = pickGC(gcTime, rec.gcTime)
	rec.entry = Entry{Data: data, UpdatedAt: s.now(), version: s.bump()}
	s.put(rec)
	s.mu.Unlock()
	s.notify(key)
}

// Update applies fn to the current data for key and stores the result
// without touching freshness. fn receives nil when the key is absent and
// returns ok=false to skip the write.
func (s *Store) Update(key Key, fn func(current any) (next any, ok bool)) bool {
	s.mu.Lock()
	rec, _ := s.lookup(key)
	next, ok := fn(rec.entry.Data)
	if !ok {
		s.mu.Unlock()
		return false
	}
	rec.key = key
	rec.gcTime = pickGC(0, rec.gcTime)
	rec.entry.Data = next
	rec.entry.version = s.bump()
	s.put(rec)
	s.mu.Unlock()
	s.notify(key)
	return true
}

// UpdateAll applies fn to every live entry under prefix.
func (s *Store) UpdateAll(prefix Key, fn func(key Key, current any) (next any, ok bool)) int {
	s.mu.Lock()
	var changed []Key
	for _, rec := range s.scan(prefix) {
		next, ok := fn(rec.key, rec.entry.Data)
		if !ok {
			continue
		}
		rec.entry.Data = next
		rec.entry.version = s.bump()
		s.put(rec)
		changed = append(changed, rec.key)
	}
	s.mu.Unlock()
	for _, k := range changed {
		s.notify(k)
	}
	return len(changed)
}

// Delete removes key.
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	_, existed := s.lookup(key)
	s.entries.Delete(key.ID())
	s.mu.Unlock()
	if existed {
		s.notify(key)
	}
}

// Invalidate marks every entry under the given prefixes as stale. Data is
// kept so views keep rendering until the refetch lands. Marking an already
// stale entry again has no further effect on what readers observe.
func (s *Store) Invalidate(prefixes ...Key) int {
	s.mu.Lock()
	var marked []Key
	seen := make(map[string]bool)
	for _, prefix := range prefixes {
		for _, rec := range s.scan(prefix) {
			id := rec.key.ID()
			if seen[id] {
				continue
			}
			seen[id] = true
			rec.entry.Invalidated = true
			rec.entry.invalidatedSeq = s.bump()
			s.put(rec)
			marked = append(marked, rec.key)
		}
	}
	s.mu.Unlock()
	for _, k := range marked {
		s.notify(k)
	}
	return len(marked)
}

// FetchToken ties an in-flight fetch to the entry version it started from.
type FetchToken struct {
	Key     Key
	id      uint64
	version uint64
	seq     uint64
	ctx     context.Context
}

// BeginFetch registers an in-flight fetch for key and returns the context
// the fetch must use. The context is cancelled by CancelQueries, Clear, or
// a mutation beginning on an overlapping prefix.
func (s *Store) BeginFetch(key Key) (context.Context, FetchToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithCancel(s.base)
	s.fetchSeq++
	rec, _ := s.lookup(key)
	tok := FetchToken{Key: key, id: s.fetchSeq, version: rec.entry.version, seq: s.seq, ctx: ctx}
	s.inflight[tok.id] = fetchReg{key: key, cancel: cancel}
	return ctx, tok
}

// EndFetch writes the outcome of a fetch. The write is dropped when the
// fetch was cancelled or when the entry was written after the fetch began,
// so a late response never clobbers an optimistic value. It reports whether
// the result was stored.
func (s *Store) EndFetch(tok FetchToken, data any, err error, gcTime time.Duration) bool {
	s.mu.Lock()
	reg, registered := s.inflight[tok.id]
	delete(s.inflight, tok.id)
	if registered {
		defer reg.cancel()
	}
	if !registered || tok.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	rec, _ := s.lookup(tok.Key)
	if rec.entry.version != tok.version {
		s.mu.Unlock()
		return false
	}
	rec.key = tok.Key
	rec.gcTime = pickGC(gcTime, rec.gcTime)
	if err != nil {
		rec.entry.Err = err
		rec.entry.ConsecutiveFailures++
	} else {
		stillStale := rec.entry.Invalidated && rec.entry.invalidatedSeq > tok.seq
		rec.entry = Entry{
			Data:           data,
			UpdatedAt:      s.now(),
			Invalidated:    stillStale,
			invalidatedSeq: rec.entry.invalidatedSeq,
		}
	}
	rec.entry.version = s.bump()
	s.put(rec)
	s.mu.Unlock()
	s.notify(tok.Key)
	return true
}

// CancelQueries cancels in-flight fetches for keys under the given prefixes.
func (s *Store) CancelQueries(prefixes ...Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(prefixes)
}

func (s *Store) cancelLocked(prefixes []Key) int {
	n := 0
	for id, reg := range s.inflight {
		for _, prefix := range prefixes {
			if reg.key.HasPrefix(prefix) {
				reg.cancel()
				delete(s.inflight, id)
				n++
				break
			}
		}
	}
	return n
}

// InFlight reports how many fetches are registered.
func (s *Store) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Clear cancels all fetches and drops every entry. Used on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.stop()
	s.inflight = make(map[uint64]fetchReg)
	s.entries.Flush()
	s.base, s.stop = context.WithCancel(context.Background())
	s.health = Health{}
	s.mu.Unlock()
	s.notify(nil)
}

// Close clears the store and closes all subscriber channels.
func (s *Store) Close() {
	s.Clear()
	s.mu.Lock()
	s.stop()
	s.mu.Unlock()

	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
}

// Subscribe returns a channel receiving every changed key (nil after Clear)
// and a function that ends the subscription. Slow subscribers miss
// notifications rather than blocking writers.
func (s *Store) Subscribe() (<-chan Key, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Key, subscriberBuf)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

func (s *Store) notify(key Key) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- key:
		default:
		}
	}
}

func (s *Store) lookup(key Key) (record, bool) {
	v, ok := s.entries.Get(key.ID())
	if !ok {
		return record{}, false
	}
	return v.(record), true
}

func (s *Store) scan(prefix Key) []record {
	var out []record
	for _, item := range s.entries.Items() {
		rec := item.Object.(record)
		if rec.key.HasPrefix(prefix) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) put(rec record) {
	s.entries.Set(rec.key.ID(), rec, rec.gcTime)
}

func (s *Store) bump() uint64 {
	s.seq++
	return s.seq
}

func pickGC(requested, current time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	if current > 0 {
		return current
	}
	return DefaultGCTime
}

// Health summarizes background refresh outcomes for the status bar.
type Health struct {
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the backend has been unreachable for multiple polls.
func (h Health) IsOffline() bool {
	return h.ConsecutiveFailures >= 2
}

// RecordPoll records one background refresh. A failure keeps the cached
// data and increments the failure count.
func (s *Store) RecordPoll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health.LastUpdated = s.now()
	if err != nil {
		s.health.LastError = err
		s.health.ConsecutiveFailures++
		return
	}
	s.health.LastError = nil
	s.health.ConsecutiveFailures = 0
}

// Health returns a copy of the refresh health.
func (s *Store) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.health
	if h.LastError != nil {
		h.LastError = fmt.Errorf("%w", h.LastError)
	}
	return h
}
