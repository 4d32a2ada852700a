// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ismaelsadeeq/bitcoin/mempool/txgraph"
)

// checkTRUCPolicy enforces the topology rules for TRUC (v3) transactions
// against the given view:
//
//   - A TRUC transaction may not exceed MaxTRUCVsize vbytes.
//   - TRUC and non-TRUC transactions may not spend each other's unconfirmed
//     outputs, in either direction.
//   - A TRUC transaction may have at most one unconfirmed ancestor.
//   - A TRUC transaction with an unconfirmed parent may not exceed
//     MaxTRUCChildVsize vbytes.
//   - A TRUC parent may have at most one unconfirmed descendant.
//
// directConflicts are entries the candidate would replace; children of the
// parent that are being replaced anyway are not counted against the
// descendant rule.
//
// When the descendant rule is the only obstacle, allowSiblingEviction is set,
// and the parent has exactly one descendant with no children of its own, that
// descendant's hash is returned together with the violation error. The caller
// may then retry the candidate as a replacement of the sibling. With an
// ambiguous sibling (the parent already has several descendants) no eviction
// candidate exists and the violation is reported as an unresolvable conflict.
func checkTRUCPolicy(view txgraph.View, tx *btcutil.Tx, vsize int64,
	ancestors map[chainhash.Hash]*txgraph.Entry,
	directConflicts map[chainhash.Hash]*txgraph.Entry,
	policy *PolicyConfig,
	allowSiblingEviction bool) (*chainhash.Hash, error) {

	isTRUC := tx.MsgTx().Version == txgraph.TRUCVersion
	txHash := tx.Hash()
	wtxid := tx.WitnessHash()

	// Class inheritance is checked per spend edge: every in-view parent
	// must be of the same class as the candidate.
	seen := make(map[chainhash.Hash]struct{})
	for _, txIn := range tx.MsgTx().TxIn {
		parentHash := txIn.PreviousOutPoint.Hash
		if _, ok := seen[parentHash]; ok {
			continue
		}
		seen[parentHash] = struct{}{}

		parent, exists := view.Get(parentHash)
		if !exists {
			continue
		}

		if parent.IsTRUC && !isTRUC {
			return nil, ruleError(KindTopologyViolation,
				"non-TRUC tx %v (wtxid=%v) cannot spend from TRUC tx "+
					"%v (wtxid=%v)", txHash, wtxid, parent.TxHash,
				parent.Desc.Wtxid)
		}
		if !parent.IsTRUC && isTRUC {
			return nil, ruleError(KindTopologyViolation,
				"TRUC tx %v (wtxid=%v) cannot spend from non-TRUC tx "+
					"%v (wtxid=%v)", txHash, wtxid, parent.TxHash,
				parent.Desc.Wtxid)
		}
	}

	if !isTRUC {
		return nil, nil
	}

	if vsize > policy.MaxTRUCVsize {
		return nil, ruleError(KindTopologyViolation,
			"TRUC tx %v (wtxid=%v) is too big: %d > %d virtual bytes",
			txHash, wtxid, vsize, policy.MaxTRUCVsize)
	}

	if len(ancestors) > 1 {
		return nil, ruleError(KindTopologyViolation,
			"tx %v (wtxid=%v) would have too many ancestors", txHash,
			wtxid)
	}

	if len(ancestors) == 0 {
		return nil, nil
	}

	if vsize > policy.MaxTRUCChildVsize {
		return nil, ruleError(KindTopologyViolation,
			"TRUC child tx %v (wtxid=%v) is too big: %d > %d virtual "+
				"bytes", txHash, wtxid, vsize, policy.MaxTRUCChildVsize)
	}

	// The single ancestor is necessarily the direct parent. Children being
	// replaced anyway do not count against the descendant rule.
	var parent *txgraph.Entry
	for _, ancestor := range ancestors {
		parent = ancestor
	}

	var siblings []*txgraph.Entry
	for childHash, child := range view.ChildrenOf(parent) {
		if _, replaced := directConflicts[childHash]; replaced {
			continue
		}
		siblings = append(siblings, child)
	}

	if len(siblings) == 0 {
		return nil, nil
	}

	descErr := ruleError(KindTopologyViolation,
		"tx %v (wtxid=%v) would exceed descendant count limit",
		parent.TxHash, parent.Desc.Wtxid)

	if allowSiblingEviction {
		// Eviction only has an unambiguous target when the parent has
		// exactly one descendant.
		if len(siblings) == 1 && len(view.ChildrenOf(siblings[0])) == 0 {
			siblingHash := siblings[0].TxHash
			return &siblingHash, descErr
		}

		return nil, RuleError{Kind: KindConflictUnresolved, Err: descErr.Err}
	}

	return nil, descErr
}
