// Package subscriber provides the ordered, duplicate-tolerant subscriber list
// the bridge keeps per (handle, event kind).
//
// Go func values are not comparable, so Add returns an ID that identifies the
// entry for Remove. Adding the same func twice creates two entries with two
// IDs, and both are invoked.
//
// Storage is copy-on-write: Add and Remove replace the backing slice, and
// Invoke iterates the slice it captured at start. A callback that adds or
// removes entries (itself included) while being invoked cannot make the
// in-flight dispatch skip or repeat anyone.
//
// Lists are not safe for concurrent use.
package subscriber
