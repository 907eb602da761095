// Package software defines the streaming-software capability the remote-control
// server drives, and Dummy, an in-memory implementation used by the reference
// server binary and by tests.
//
// A Software owns a set of outputs (recordings and streams), executes start, stop
// and delay commands for them, and reports state changes through the callbacks
// registered with Subscribe. Implementations must be safe for concurrent use,
// since every connected client calls into the same instance.
package software
