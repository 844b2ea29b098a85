// Package query binds cache keys to fetch functions and runs writes that
// keep the cache consistent.
//
// Use serves fresh cached data, and otherwise performs one deduplicated
// fetch per key, retrying transport failures and 5xx responses according
// to ShouldRetry. Mutate wraps a write in a state.Tx so that optimistic
// cache edits are rolled back exactly when the backend rejects the write.
//
// There is no refetch-on-focus behaviour: data is refetched only when a
// view asks for it after the stale window, after a mutation invalidated it,
// or when the background poller refreshes it.
package query
