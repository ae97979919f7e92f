// Package net implements the transports used by the leader to collect votes
// from validators and to announce committed transactions.
//
// Two implementations of the Transport interface are provided:
//
// - Inmem: in-memory transport used for testing and single-process setups
//
// - TCP: communicating over plain TCP
//
// On the TCP transport every request is one JSON object carrying its kind
// ("vote" or "announce") and body, and every response is one JSON object
// carrying the validator's refusal or its answer. Connections are pooled per
// target.
//
// Every outbound call takes a context. Cancelling the context aborts the call
// even if it is blocked on the network.
package net
