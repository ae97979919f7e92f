// Package dag implements the transaction ledger.
//
// Transactions reference the ids of the transactions they depend on (their
// parents), forming a directed acyclic graph. The Graph admits a transaction
// only if every ancestor exists, is not revoked, and carries a valid signature.
// Each committed transaction is assigned a layer: zero for roots, otherwise one
// more than the highest layer among its parents.
//
// Ancestry is attacker-controlled input, so validation walks it with an
// explicit worklist and a visiting set. A transaction that is reached again
// while it is still being visited yields the Cyclic verdict instead of looping.
package dag
