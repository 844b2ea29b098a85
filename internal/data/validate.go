package data

import (
	"regexp"
	"strings"
)

// MaxRouteIDLength bounds identifiers taken from navigation or user input.
const MaxRouteIDLength = 64

var routeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidID reports whether id can be sent to the backend at all. The
// literal strings "undefined" and "null" leak out of unresolved route
// parameters and are rejected alongside blank ids.
func ValidID(id string) bool {
	id = strings.TrimSpace(id)
	switch id {
	case "", "undefined", "null":
		return false
	}
	return true
}

// ValidRouteID is ValidID plus a safe-character allowlist and a length cap.
func ValidRouteID(id string) bool {
	if !ValidID(id) || len(id) > MaxRouteIDLength {
		return false
	}
	return routeIDPattern.MatchString(id)
}
