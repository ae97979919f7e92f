// Package node assembles a dagledger process.
//
// A node is either a leader or a validator. Both hold a ledger graph, restored
// from a store on startup and saved periodically and on shutdown.
//
// Leader
//
// A leader owns a consensus Engine over the validators listed in peers.json.
// Propose and Submit send a transaction to every validator, commit it locally
// once a strict majority accepts, announce it to the remote validators so they
// can extend their own ledger, and finally execute its contract. If the leader
// lists its own key in peers.json, it votes too, against its local graph.
//
// Validator
//
// A validator runs a VoteService on its transport. It answers vote requests
// signed by a key of leaders.json by checking the transaction against its own
// graph, and applies announced transactions. Requests are rate limited per
// leader.
//
// Both roles expose Prometheus collectors and, when a bundle interval is set,
// periodically publish the ledger's bundles to Kafka or to the log.
package node
