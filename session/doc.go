// Package session provides SessionStore implementations.
//
// InMemoryStore is the default: fast, concurrency safe and volatile. The
// sqlite subpackage offers a durable store backed by a pure Go SQLite
// driver. Both satisfy the contract suite in sessiontest.
package session
