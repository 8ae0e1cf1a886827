// Package redlock implements the Redlock distributed-locking algorithm:
// mutual exclusion over a resource name, coordinated across N independent
// key-value nodes with a bounded validity window and quorum-based safety.
// A lock is acquired when a majority of instances accept a set-if-absent of
// a unique token, within a validity window of ttl minus elapsed time minus
// a clock-drift margin. Locks can be extended and are released by token, so
// one holder can never release another holder's lock.
package redlock
