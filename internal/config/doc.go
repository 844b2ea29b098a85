// Package config loads toolroom's configuration.
//
// # Overview
//
// Configuration is a TOML file plus a small set of environment overrides. The
// file describes where the maintenance backend lives, where logs and saved
// credentials go, and how aggressively the client may talk to the backend.
//
// # Resolution Order
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/toolroom/config.toml
//  3. If the file doesn't exist, start from Default()
//  4. Empty or zero fields in the file keep their defaults
//  5. TOOLROOM_* environment variables win over the file
//
// LoadDotenv may be called before Load to populate the environment from a
// .env file during local development.
//
// # Default Values
//
//   - Config file: ~/.config/toolroom/config.toml
//   - API base URL: http://127.0.0.1:5000/api
//   - Log directory: ~/.local/share/toolroom/logs
//   - Credentials: ~/.config/toolroom/credentials.toml
//   - Request timeout: 15s
//   - Rate limit: 20 req/s, burst 10
//   - Maintenance interval: 500h, warning window 50h
//
// # Environment
//
//   - TOOLROOM_API_URL
//   - TOOLROOM_API_KEY (sent as X-API-Key on admin calls)
//   - TOOLROOM_LOG_DIR
//   - TOOLROOM_LOG_LEVEL
//   - TOOLROOM_METRICS_ADDR
//
// # Path Expansion
//
// Paths beginning with ~ are expanded to the user's home directory and made
// absolute. Load returns an error only when the file exists but cannot be read
// or parsed, or when the environment cannot be parsed.
package config
