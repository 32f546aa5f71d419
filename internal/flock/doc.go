// Package flock provides cross-platform file locking utilities.
//
// Task files and the history file are shared between concurrent taskwire
// processes (CLI invocations and a running MCP server), so every writer takes
// an exclusive advisory lock first. The non-blocking primitives work on both
// Unix and Windows; Acquire layers a bounded retry loop on top.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.Acquire(ctx, file, 5*time.Second); err != nil {
//	    // Lock not acquired within the timeout
//	}
//	defer flock.Unlock(file.Fd())
package flock
