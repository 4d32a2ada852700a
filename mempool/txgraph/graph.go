package txgraph

import (
	"fmt"
	"iter"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxGraph is the in-memory DAG of unconfirmed transactions. Nodes are pool
// entries, edges run from parents (spent) to children (spenders), and an
// outpoint index maps every spent outpoint to its spending entry.
//
// The graph carries no policy of its own and performs no synchronization; the
// owning pool serializes all access behind its own lock.
type TxGraph struct {
	config *Config

	// entries stores all transactions currently in the pool. Hash map
	// provides O(1) lookups by transaction ID.
	entries map[chainhash.Hash]*Entry

	// spentBy maps an outpoint to the entry that spends it. This powers
	// O(1) conflict detection and reconnects surviving children to a
	// parent that re-enters the pool after a reorg.
	spentBy map[wire.OutPoint]*Entry
}

// New creates a new transaction graph.
func New(config *Config) *TxGraph {
	if config == nil {
		config = DefaultConfig()
	}

	return &TxGraph{
		config:  config,
		entries: make(map[chainhash.Hash]*Entry),
		spentBy: make(map[wire.OutPoint]*Entry),
	}
}

// Add inserts a transaction into the graph and links it to any resident
// parents and children. Children already resident arise when a confirmed
// parent re-enters the pool during a reorg; their edges are rebuilt from the
// spentBy index. Aggregates of the new entry and of every entry whose closure
// it changes are refreshed before returning.
func (g *TxGraph) Add(tx *btcutil.Tx, desc *TxDesc) (*Entry, error) {
	hash := *tx.Hash()

	if _, exists := g.entries[hash]; exists {
		return nil, ErrEntryExists
	}

	if len(g.entries) >= g.config.MaxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrGraphFull,
			g.config.MaxEntries)
	}

	if desc.Added.IsZero() {
		desc.Added = time.Now()
	}

	entry := &Entry{
		TxHash:   hash,
		Tx:       tx,
		Desc:     desc,
		Parents:  make(map[chainhash.Hash]*Entry),
		Children: make(map[chainhash.Hash]*Entry),
		IsTRUC:   tx.MsgTx().Version == TRUCVersion,
	}

	// Connect edges based on inputs and claim the spent outpoints. The
	// caller must have resolved conflicts already; any previous spender of
	// these outpoints has been removed by the time we get here.
	for _, txIn := range tx.MsgTx().TxIn {
		g.spentBy[txIn.PreviousOutPoint] = entry

		parentHash := txIn.PreviousOutPoint.Hash
		if parent, exists := g.entries[parentHash]; exists {
			entry.Parents[parentHash] = parent
			parent.Children[hash] = entry
		}
	}

	// Reconnect resident children that spend this transaction's outputs.
	for i := range tx.MsgTx().TxOut {
		outpoint := wire.OutPoint{Hash: hash, Index: uint32(i)}

		if child, exists := g.spentBy[outpoint]; exists {
			entry.Children[child.TxHash] = child
			child.Parents[hash] = entry
		}
	}

	g.entries[hash] = entry

	// The new entry can bridge previously unrelated subgraphs, so every
	// entry in its combined closure needs fresh aggregates.
	g.refreshAggregates(entry)
	for _, ancestor := range Ancestors(g, hash) {
		g.refreshAggregates(ancestor)
	}
	for _, descendant := range Descendants(g, hash) {
		g.refreshAggregates(descendant)
	}

	return entry, nil
}

// Remove removes a transaction and all of its descendants from the graph.
// This is the eviction path: once a parent is gone its descendants spend
// outputs that no longer exist.
func (g *TxGraph) Remove(hash chainhash.Hash) error {
	if _, exists := g.entries[hash]; !exists {
		return ErrEntryNotFound
	}

	toRemove := g.collectDescendantsToRemove(hash)

	// Track the surviving ancestors whose descendant aggregates change.
	affected := make(map[chainhash.Hash]*Entry)
	for _, removeHash := range toRemove {
		for ancestorHash, ancestor := range Ancestors(g, removeHash) {
			affected[ancestorHash] = ancestor
		}
	}

	// Remove in reverse order (children before parents) so that every
	// parent.Children update refers to a live entry.
	for i := len(toRemove) - 1; i >= 0; i-- {
		g.removeEntry(toRemove[i])
	}

	for affectedHash, ancestor := range affected {
		if _, exists := g.entries[affectedHash]; exists {
			g.refreshAggregates(ancestor)
		}
	}

	return nil
}

// RemoveNoCascade removes a transaction without removing its descendants.
// This is the confirmation path: the transaction leaves the pool but its
// children remain valid, now spending a confirmed output. The children keep
// their remaining edges and have their aggregates refreshed.
func (g *TxGraph) RemoveNoCascade(hash chainhash.Hash) error {
	if _, exists := g.entries[hash]; !exists {
		return ErrEntryNotFound
	}

	affected := make(map[chainhash.Hash]*Entry)
	for ancestorHash, ancestor := range Ancestors(g, hash) {
		affected[ancestorHash] = ancestor
	}
	for descendantHash, descendant := range Descendants(g, hash) {
		affected[descendantHash] = descendant
	}

	g.removeEntry(hash)

	for _, survivor := range affected {
		g.refreshAggregates(survivor)
	}

	return nil
}

// collectDescendantsToRemove collects all descendants including the entry
// itself, each exactly once, parents discovered before their children. A
// shared descendant reachable through several paths must not be revisited or
// the collection grows with the number of paths rather than the number of
// entries.
func (g *TxGraph) collectDescendantsToRemove(
	hash chainhash.Hash) []chainhash.Hash {

	entry, exists := g.entries[hash]
	if !exists {
		return nil
	}

	visited := map[chainhash.Hash]struct{}{hash: {}}
	result := []chainhash.Hash{hash}

	for i := 0; i < len(result); i++ {
		entry = g.entries[result[i]]
		for childHash := range entry.Children {
			if _, seen := visited[childHash]; seen {
				continue
			}
			visited[childHash] = struct{}{}
			result = append(result, childHash)
		}
	}

	return result
}

// removeEntry removes a single entry and unlinks its edges and spent
// outpoints. Aggregates of surviving relatives are the caller's problem.
func (g *TxGraph) removeEntry(hash chainhash.Hash) {
	entry, exists := g.entries[hash]
	if !exists {
		return
	}

	for _, parent := range entry.Parents {
		delete(parent.Children, hash)
	}

	for _, child := range entry.Children {
		delete(child.Parents, hash)
	}

	// Release the spent outpoints, but only those still claimed by this
	// entry. A replacement may already have claimed a contested outpoint.
	for _, txIn := range entry.Tx.MsgTx().TxIn {
		if g.spentBy[txIn.PreviousOutPoint] == entry {
			delete(g.spentBy, txIn.PreviousOutPoint)
		}
	}

	delete(g.entries, hash)
}

// refreshAggregates recomputes an entry's cached ancestor/descendant counts
// and sizes from the current graph.
func (g *TxGraph) refreshAggregates(entry *Entry) {
	ancestors := Ancestors(g, entry.TxHash)
	entry.AncestorCount = len(ancestors)
	entry.AncestorSize = 0
	for _, ancestor := range ancestors {
		entry.AncestorSize += ancestor.Desc.VirtualSize
	}

	descendants := Descendants(g, entry.TxHash)
	entry.DescendantCount = len(descendants)
	entry.DescendantSize = 0
	for _, descendant := range descendants {
		entry.DescendantSize += descendant.Desc.VirtualSize
	}
}

// Get returns the entry for the given transaction ID.
func (g *TxGraph) Get(hash chainhash.Hash) (*Entry, bool) {
	entry, exists := g.entries[hash]
	return entry, exists
}

// Has reports whether the transaction is present in the graph.
func (g *TxGraph) Has(hash chainhash.Hash) bool {
	_, exists := g.entries[hash]
	return exists
}

// ParentsOf returns the in-graph parents of an entry.
func (g *TxGraph) ParentsOf(entry *Entry) map[chainhash.Hash]*Entry {
	return entry.Parents
}

// ChildrenOf returns the in-graph children of an entry.
func (g *TxGraph) ChildrenOf(entry *Entry) map[chainhash.Hash]*Entry {
	return entry.Children
}

// SpendingEntry returns the entry spending the given outpoint, if any.
func (g *TxGraph) SpendingEntry(outpoint wire.OutPoint) (*Entry, bool) {
	entry, exists := g.spentBy[outpoint]
	return entry, exists
}

// Count returns the number of entries in the graph.
func (g *TxGraph) Count() int {
	return len(g.entries)
}

// Iterate returns an iterator over all entries in the graph in no particular
// order.
func (g *TxGraph) Iterate() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for _, entry := range g.entries {
			if !yield(entry) {
				return
			}
		}
	}
}
