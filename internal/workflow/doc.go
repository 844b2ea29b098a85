// Package workflow holds the maintenance wizard and the pure rules views
// share: urgency classification, part selection with cost totals, and the
// operating-hours due check.
package workflow
