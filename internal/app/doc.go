// Package app wires configuration, logging, the API client, the cache and
// the UI together. It is the composition root of toolroom.
//
// Run performs, in order:
//
//  1. Load .env files and the TOML config with TOOLROOM_* overrides
//  2. Open the JSON file logger and optional /metrics listener
//  3. Build the API client, restoring a saved session
//  4. Create the cache, query client and data layer
//  5. Start the poller that keeps the machine and parts lists warm
//  6. Run the terminal UI until the user quits or the context ends
//
// With Options.Demo the client talks to an in-process mock backend seeded
// with generated data. With Options.ExportPath Run writes an xlsx workbook
// of the machine and parts lists and returns without starting the UI.
//
// # Polling
//
// The poller refreshes both lists every 15 seconds while a session exists.
// Consecutive failures double the wait up to five minutes; two in a row
// mark the backend offline in the header. Cached data stays visible.
package app
