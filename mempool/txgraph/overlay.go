package txgraph

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Overlay is a copy-on-write view over a base View. Staged additions and
// removals are recorded as deltas without touching the base, so a package can
// be evaluated member by member, each member resolving earlier members as
// parents, and the whole thing discarded afterwards.
//
// Removals always cascade: staging a removal stages the removal of the
// entry's entire descendant closure, mirroring eviction on the live graph.
type Overlay struct {
	base View

	// added holds entries staged on top of the base. Their Parents and
	// Children maps reference both staged and base entries.
	added map[chainhash.Hash]*Entry

	// removed holds base transactions hidden from this view.
	removed map[chainhash.Hash]struct{}

	// spentBy maps outpoints claimed by staged entries. Consulted before
	// the base index so a staged replacement shadows the conflict it
	// evicts.
	spentBy map[wire.OutPoint]*Entry

	// extraChildren records staged children of base entries, since base
	// Children maps cannot be mutated.
	extraChildren map[chainhash.Hash]map[chainhash.Hash]*Entry
}

// NewOverlay returns an empty overlay on top of the given base view.
func NewOverlay(base View) *Overlay {
	return &Overlay{
		base:          base,
		added:         make(map[chainhash.Hash]*Entry),
		removed:       make(map[chainhash.Hash]struct{}),
		spentBy:       make(map[wire.OutPoint]*Entry),
		extraChildren: make(map[chainhash.Hash]map[chainhash.Hash]*Entry),
	}
}

// Get returns the entry for the given transaction ID, honoring staged
// additions and removals.
func (o *Overlay) Get(hash chainhash.Hash) (*Entry, bool) {
	if _, gone := o.removed[hash]; gone {
		return nil, false
	}
	if entry, ok := o.added[hash]; ok {
		return entry, true
	}
	return o.base.Get(hash)
}

// Has reports whether the transaction is present in this view.
func (o *Overlay) Has(hash chainhash.Hash) bool {
	_, ok := o.Get(hash)
	return ok
}

// ParentsOf returns the in-view parents of an entry. Staged entries carry
// their own merged parent maps; base entries have staged removals filtered
// out.
func (o *Overlay) ParentsOf(entry *Entry) map[chainhash.Hash]*Entry {
	if _, staged := o.added[entry.TxHash]; staged {
		return entry.Parents
	}

	if len(o.removed) == 0 {
		return entry.Parents
	}

	parents := make(map[chainhash.Hash]*Entry, len(entry.Parents))
	for hash, parent := range entry.Parents {
		if _, gone := o.removed[hash]; gone {
			continue
		}
		parents[hash] = parent
	}
	return parents
}

// ChildrenOf returns the in-view children of an entry, merging staged
// children of base entries and filtering staged removals.
func (o *Overlay) ChildrenOf(entry *Entry) map[chainhash.Hash]*Entry {
	staged := o.extraChildren[entry.TxHash]

	if _, isStaged := o.added[entry.TxHash]; isStaged {
		// Staged entries only ever gain staged children, which are
		// linked directly into their Children maps.
		return entry.Children
	}

	if len(staged) == 0 && len(o.removed) == 0 {
		return entry.Children
	}

	children := make(map[chainhash.Hash]*Entry,
		len(entry.Children)+len(staged))
	for hash, child := range entry.Children {
		if _, gone := o.removed[hash]; gone {
			continue
		}
		children[hash] = child
	}
	for hash, child := range staged {
		children[hash] = child
	}
	return children
}

// SpendingEntry returns the in-view entry spending the given outpoint, if
// any.
func (o *Overlay) SpendingEntry(outpoint wire.OutPoint) (*Entry, bool) {
	if entry, ok := o.spentBy[outpoint]; ok {
		return entry, true
	}

	entry, ok := o.base.SpendingEntry(outpoint)
	if !ok {
		return nil, false
	}
	if _, gone := o.removed[entry.TxHash]; gone {
		return nil, false
	}
	return entry, true
}

// Stage adds a candidate transaction to the overlay, linking it to its
// in-view parents. The caller must have resolved conflicts already, exactly
// as with TxGraph.Add.
func (o *Overlay) Stage(tx *btcutil.Tx, desc *TxDesc) *Entry {
	hash := *tx.Hash()

	entry := &Entry{
		TxHash:   hash,
		Tx:       tx,
		Desc:     desc,
		Parents:  make(map[chainhash.Hash]*Entry),
		Children: make(map[chainhash.Hash]*Entry),
		IsTRUC:   tx.MsgTx().Version == TRUCVersion,
	}

	for _, txIn := range tx.MsgTx().TxIn {
		o.spentBy[txIn.PreviousOutPoint] = entry

		parentHash := txIn.PreviousOutPoint.Hash
		parent, exists := o.Get(parentHash)
		if !exists {
			continue
		}

		entry.Parents[parentHash] = parent

		if _, parentStaged := o.added[parentHash]; parentStaged {
			parent.Children[hash] = entry
		} else {
			children := o.extraChildren[parentHash]
			if children == nil {
				children = make(map[chainhash.Hash]*Entry)
				o.extraChildren[parentHash] = children
			}
			children[hash] = entry
		}
	}

	o.added[hash] = entry

	return entry
}

// StageRemove hides a base transaction and its entire in-view descendant
// closure from the overlay.
func (o *Overlay) StageRemove(hash chainhash.Hash) {
	entry, exists := o.Get(hash)
	if !exists {
		return
	}

	descendants := Descendants(o, hash)

	o.removed[entry.TxHash] = struct{}{}
	for descendantHash := range descendants {
		o.removed[descendantHash] = struct{}{}
	}
}
