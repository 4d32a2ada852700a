// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ismaelsadeeq/bitcoin/mempool/txgraph"
)

// evictionSet is the full set of pool transactions a replacement candidate
// would remove: the directly conflicting entries (plus at most one sibling
// chosen for eviction), and all of their descendants.
type evictionSet struct {
	// direct maps the directly conflicting entries and the sibling, if
	// one was chosen. The feerate rule compares the candidate against
	// exactly these.
	direct map[chainhash.Hash]*txgraph.Entry

	// all maps every entry that leaves the pool, including descendants of
	// the direct conflicts. The count ceiling and the absolute fee rule
	// consider all of them.
	all map[chainhash.Hash]*txgraph.Entry
}

// buildEvictionSet assembles the eviction set for a candidate from its
// conflicts and an optional sibling eviction target.
func buildEvictionSet(view txgraph.View, conflicts *txgraph.ConflictSet,
	sibling *chainhash.Hash) *evictionSet {

	evict := &evictionSet{
		direct: make(map[chainhash.Hash]*txgraph.Entry),
		all:    make(map[chainhash.Hash]*txgraph.Entry),
	}

	for hash, entry := range conflicts.Direct {
		evict.direct[hash] = entry
	}
	for hash, entry := range conflicts.Transactions {
		evict.all[hash] = entry
	}

	if sibling != nil {
		if entry, exists := view.Get(*sibling); exists {
			evict.direct[*sibling] = entry
			evict.all[*sibling] = entry

			for hash, descendant := range txgraph.Descendants(view, *sibling) {
				evict.all[hash] = descendant
			}
		}
	}

	return evict
}

// validateReplacement determines whether a candidate may evict the given set
// of pool transactions. The rules are checked in a fixed order and the first
// failure is reported:
//
//  1. The eviction set contains at most MaxReplacementEvictions entries.
//  2. Unless FullRBF is configured, at least one directly conflicting entry
//     is replaceable.
//  3. The candidate pays at least the evicted fees plus the minimum relay
//     fee for its own size.
//  4. The candidate's feerate strictly exceeds that of every directly
//     evicted entry.
func validateReplacement(txHash *chainhash.Hash, txFee, vsize int64,
	evict *evictionSet, policy *PolicyConfig) error {

	if len(evict.all) > policy.MaxReplacementEvictions {
		return ruleError(KindReplacementRejected,
			"%w: rejecting replacement %v; too many potential "+
				"replacements (%d > %d)", ErrTooManyEvictions, txHash,
			len(evict.all), policy.MaxReplacementEvictions)
	}

	if !policy.FullRBF {
		signals := false
		for _, conflict := range evict.direct {
			if conflict.Desc.Replaceable {
				signals = true
				break
			}
		}
		if !signals {
			return ruleError(KindReplacementRejected,
				"%w: rejecting replacement %v; conflicting "+
					"transactions do not signal replaceability",
				ErrNonReplaceable, txHash)
		}
	}

	var conflictsFee int64
	for _, conflict := range evict.all {
		conflictsFee += conflict.Desc.Fee
	}

	minIncrement := calcMinRequiredTxRelayFee(vsize, policy.MinRelayTxFee)
	if txFee < conflictsFee+minIncrement {
		return ruleError(KindReplacementRejected,
			"%w: rejecting replacement %v, not enough additional fees "+
				"to relay; %d < %d", ErrInsufficientAbsoluteFee, txHash,
			txFee, conflictsFee+minIncrement)
	}

	txFeeRate := feeRatePerKB(txFee, vsize)
	for _, conflict := range evict.direct {
		conflictFeeRate := conflict.Desc.FeePerKB
		if txFeeRate <= conflictFeeRate {
			return ruleError(KindReplacementRejected,
				"%w: rejecting replacement %v; new feerate %d sat/kvB "+
					"<= old feerate %d sat/kvB", ErrInsufficientFeeRate,
				txHash, txFeeRate, conflictFeeRate)
		}
	}

	return nil
}
