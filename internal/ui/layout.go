package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which optional columns are hidden.
	LayoutCompactWidth = 100

	// LayoutWideWidth shows the machine detail next to the list.
	LayoutWideWidth = 150
)

// Log display limits.
const (
	// LogBufferLimit is the maximum number of log lines read from the file.
	LogBufferLimit = 2000
)

// Timing constants.
const (
	// DefaultUIInterval is how often the header and followed logs refresh.
	DefaultUIInterval = time.Second

	// FlashDuration is how long a status message stays in the header.
	FlashDuration = 6 * time.Second

	// LoadTimeout bounds a single view load or mutation.
	LoadTimeout = 30 * time.Second
)
