// Package notify implements the gateway notification bus: a websocket hub that broadcasts events to every connected
// client and, optionally, forwards them to a message broker.
//
// Delivery is fire-and-forget. Each client owns a bounded outgoing queue; when it is full the event is dropped for
// that client only. Publishing never blocks the caller.
package notify
