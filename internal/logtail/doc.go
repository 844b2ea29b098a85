// Package logtail reads the tail of the application log and decodes the
// JSON lines the logger writes into entries the log view can filter.
//
// Read keeps a ring buffer of the last N lines, so memory stays bounded by
// N regardless of file size. A missing file yields no lines and no error.
package logtail
