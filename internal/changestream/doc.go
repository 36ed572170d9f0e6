// Package changestream is the in-process publish/subscribe dispatcher for
// row-change events.
//
// Delivery is synchronous: Notify runs inside the write path that produced
// the event, calls listeners in registration order, and returns the first
// listener error to the writer. There is no isolation between listeners and
// no buffering; a failing listener fails the write's call.
//
// Events from different engines carry independent Seq values and have no
// ordering relationship with each other.
package changestream
