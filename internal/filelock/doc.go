// Package filelock provides cross-process advisory file locks.
//
// Locks are taken with flock(2) on a dedicated lock file, so they coordinate
// any number of processes that agree on the lock path. They are used to
// serialize writers of the same message file and to advertise that a session
// endpoint is alive.
//
// A [Lock] is not reentrant and is not safe for concurrent use by multiple
// goroutines; create one Lock per critical section.
package filelock
