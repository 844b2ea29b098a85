// Package data is the per-resource layer views talk to. Reads go through
// query.Use with the resource's cache policy and id gate; writes go through
// query.Mutate with an optimistic edit, exact rollback, and the set of keys
// the write makes stale.
//
// Key layout:
//
//	machines                          flat machine list
//	machine, <id>                     machine detail
//	machine-number, <number>          machine detail by number
//	maintenance-parts                 flat parts list
//	maintenance-part, <id>            part
//	maintenance-part-number, <n>      part by part number
//	maintenance-parts-list, <number>  computed parts list per machine
//	admin, ...                        admin console queries
//	users                             user accounts
package data
