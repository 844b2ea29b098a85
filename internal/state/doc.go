// Package state holds the query cache shared by every view of a session.
//
// # Overview
//
// Store maps ordered string keys (Key) to Entries holding the last fetched
// data, the last error, when the data arrived, and whether a mutation has
// marked it stale. Entries expire after their GC window since the last write
// (go-cache handles expiry). The store is created when the app starts and
// cleared when the user logs out; it is never a package-level singleton.
//
// # Fetch Coordination
//
//	Fetcher (query package):        Writer (mutation):
//	┌──────────────────┐            ┌──────────────────┐
//	│ BeginFetch(key)  │            │ Begin(prefixes)  │── cancels fetches
//	│      ↓           │            │ Update/Set       │
//	│ HTTP request     │            │      ↓           │
//	│      ↓           │            │ Commit+Invalidate│
//	│ EndFetch(token)  │            │ or Rollback      │
//	└──────────────────┘            └──────────────────┘
//
// EndFetch only writes when the entry has not changed since BeginFetch and
// the fetch was not cancelled. A late response therefore cannot overwrite
// an optimistic value or a rollback.
//
// # Invalidation
//
// Invalidate marks entries stale without discarding data. Repeating it is
// harmless: readers observe the same data and the same stale marker.
//
// # Health
//
// RecordPoll and Health track the background refresher's outcome. Two
// consecutive failures put the UI in offline mode, while cached data stays
// visible.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Stored data must be treated as
// immutable; writers replace values rather than editing them in place.
package state
