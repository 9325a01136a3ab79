// Package order is an event-sourced order aggregate on top of eventstore.
//
// Commands append exactly one event each. State is never stored; GetState
// rebuilds it by replaying the order's events from the beginning. By default
// commands are not checked against the current state; WithStrictTransitions
// replays first and rejects transitions that make no sense, such as adding
// an item to a cancelled order.
package order
