// Package ui provides the terminal interface of toolroom.
//
// The interface is a Bubble Tea program. Model is the root state; each view
// (machines, machine detail, parts, maintenance wizard, admin, logs) keeps
// its own state struct and renders through lipgloss.
//
// # Data Flow
//
// Views never call the backend directly. Reads go through data.Layer, which
// serves fresh cache entries without a request. Writes run as commands that
// report a mutationMsg. The model subscribes to the cache and:
//
//   - mirrors every change into the views, so optimistic updates and
//     rollbacks show immediately
//   - refetches keys the current view renders once a mutation marks them
//     invalidated
//
// A session expiry signalled by the HTTP client returns to the sign-in view.
//
// # Key Bindings
//
//   - 1-4 or Tab: machines, parts, admin, logs
//   - Enter: open the selected machine
//   - m: start maintenance for a machine
//   - R: refetch the current view
//   - T: cycle theme
//   - ctrl+x: sign out
//   - ?: full help
package ui
