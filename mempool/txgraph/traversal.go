package txgraph

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Ancestors returns the full unconfirmed ancestor closure of a transaction in
// the view, excluding the transaction itself. Returns nil if the transaction
// is not present.
func Ancestors(view View, hash chainhash.Hash) map[chainhash.Hash]*Entry {
	start, exists := view.Get(hash)
	if !exists {
		return nil
	}

	ancestors := make(map[chainhash.Hash]*Entry)
	queue := []*Entry{start}

	for len(queue) > 0 {
		entry := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		for parentHash, parent := range view.ParentsOf(entry) {
			if _, seen := ancestors[parentHash]; seen {
				continue
			}
			ancestors[parentHash] = parent
			queue = append(queue, parent)
		}
	}

	return ancestors
}

// Descendants returns the full unconfirmed descendant closure of a
// transaction in the view, excluding the transaction itself. Returns nil if
// the transaction is not present.
func Descendants(view View, hash chainhash.Hash) map[chainhash.Hash]*Entry {
	start, exists := view.Get(hash)
	if !exists {
		return nil
	}

	descendants := make(map[chainhash.Hash]*Entry)
	queue := []*Entry{start}

	for len(queue) > 0 {
		entry := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		for childHash, child := range view.ChildrenOf(entry) {
			if _, seen := descendants[childHash]; seen {
				continue
			}
			descendants[childHash] = child
			queue = append(queue, child)
		}
	}

	return descendants
}

// AncestorsOfTx returns the unconfirmed ancestor closure a candidate
// transaction would have if added to the view: every in-view transaction
// reachable through its inputs, deduplicated across inputs that share
// ancestry.
func AncestorsOfTx(view View, tx *btcutil.Tx) map[chainhash.Hash]*Entry {
	ancestors := make(map[chainhash.Hash]*Entry)

	for _, txIn := range tx.MsgTx().TxIn {
		parentHash := txIn.PreviousOutPoint.Hash

		parent, exists := view.Get(parentHash)
		if !exists {
			continue
		}
		if _, seen := ancestors[parentHash]; seen {
			continue
		}

		ancestors[parentHash] = parent
		for hash, ancestor := range Ancestors(view, parentHash) {
			ancestors[hash] = ancestor
		}
	}

	return ancestors
}

// ConflictSet holds the in-view transactions that conflict with a candidate
// transaction.
type ConflictSet struct {
	// Direct maps the entries spending an outpoint the candidate also
	// spends.
	Direct map[chainhash.Hash]*Entry

	// Transactions maps every entry that would have to leave the pool if
	// the candidate were accepted: the direct conflicts plus all of their
	// descendants.
	Transactions map[chainhash.Hash]*Entry
}

// ConflictsOf returns all transactions in the view that conflict with the
// given candidate. A conflict occurs when the candidate attempts to spend an
// outpoint that is already spent by an in-view transaction. Descendants of a
// conflict are included because they spend outputs that would no longer
// exist.
//
// Returns an empty ConflictSet if there are no conflicts.
func ConflictsOf(view View, tx *btcutil.Tx) *ConflictSet {
	result := &ConflictSet{
		Direct:       make(map[chainhash.Hash]*Entry),
		Transactions: make(map[chainhash.Hash]*Entry),
	}

	for _, txIn := range tx.MsgTx().TxIn {
		conflict, exists := view.SpendingEntry(txIn.PreviousOutPoint)
		if !exists {
			continue
		}

		if _, seen := result.Direct[conflict.TxHash]; seen {
			continue
		}

		result.Direct[conflict.TxHash] = conflict
		result.Transactions[conflict.TxHash] = conflict

		for hash, descendant := range Descendants(view, conflict.TxHash) {
			result.Transactions[hash] = descendant
		}
	}

	return result
}
