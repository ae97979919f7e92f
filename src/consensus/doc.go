// Package consensus gates commits into the ledger behind a majority vote.
//
// The leader runs an Engine. Proposing a transaction sends an independent vote
// request to every validator in a static set and collects the answers
// concurrently. As soon as more than half of the validators accept, the leader
// commits the transaction to its graph. If a strict majority becomes
// unreachable, or the proposal times out or is cancelled, the proposal is
// rejected and the graph is left untouched. Nothing is retried.
//
// Validators run a VoteService. It answers vote requests by validating the
// proposed transaction against the validator's own graph, and applies the
// transactions the leader announces after committing them.
package consensus
