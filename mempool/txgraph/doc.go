// Package txgraph maintains the dependency graph of unconfirmed transactions.
//
// The graph tracks parent/child spend relationships between pool entries,
// keeps an outpoint index for O(1) conflict detection, and caches per-entry
// ancestor and descendant aggregates used by policy limit checks. A
// copy-on-write Overlay allows speculative evaluation of candidate
// transactions and packages against the current state without mutating it.
//
// The package holds no policy and performs no locking; the owning pool
// serializes access and decides what may enter or leave the graph.
package txgraph
