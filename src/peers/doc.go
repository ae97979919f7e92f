// Package peers defines the validators of a ledger network and implements
// functions to manage collections of them.
//
// A peer is identified by its public key, and optionally a moniker which is a
// non-unique user-friendly name. It also specifies the address where its
// transport can be reached.
//
// Upon starting up, a node expects to find a peers.json file in its data
// directory. The file lists the validators whose votes the leader collects. The
// validator set is static for the lifetime of the node.
package peers
