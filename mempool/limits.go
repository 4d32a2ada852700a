// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ismaelsadeeq/bitcoin/mempool/txgraph"
)

// checkAncestorLimits checks that a candidate with the given would-be
// ancestor closure does not exceed the configured ancestor count and size
// limits. The limits count the candidate itself, matching how the aggregates
// are reported to operators.
func checkAncestorLimits(ancestors map[chainhash.Hash]*txgraph.Entry,
	txHash *chainhash.Hash, vsize int64, policy *PolicyConfig) error {

	ancestorCount := len(ancestors) + 1
	if ancestorCount > policy.MaxAncestorCount {
		return ruleError(KindLimitViolation,
			"%w: tx %v has %d ancestors (max %d)",
			ErrExceededAncestorLimit, txHash, ancestorCount,
			policy.MaxAncestorCount)
	}

	ancestorSize := vsize
	for _, ancestor := range ancestors {
		ancestorSize += ancestor.Desc.VirtualSize
	}
	if ancestorSize > policy.MaxAncestorSize {
		return ruleError(KindLimitViolation,
			"%w: tx %v ancestor size %d vbytes (max %d)",
			ErrExceededAncestorLimit, txHash, ancestorSize,
			policy.MaxAncestorSize)
	}

	return nil
}

// checkDescendantLimits checks that admitting the candidate would not push
// any of its would-be ancestors over the configured descendant count and size
// limits. Entries in excluded are being evicted by the candidate and do not
// count. Closures are computed against the view rather than read from the
// cached aggregates so that speculative (overlay) evaluation sees staged
// package members.
func checkDescendantLimits(view txgraph.View,
	ancestors map[chainhash.Hash]*txgraph.Entry,
	excluded map[chainhash.Hash]*txgraph.Entry, txHash *chainhash.Hash,
	vsize int64, policy *PolicyConfig) error {

	for _, ancestor := range ancestors {
		// The ancestor counts itself, its surviving descendants, and
		// the candidate.
		descendantCount := 2
		descendantSize := ancestor.Desc.VirtualSize + vsize
		for hash, descendant := range txgraph.Descendants(view, ancestor.TxHash) {
			if _, evicted := excluded[hash]; evicted {
				continue
			}
			descendantCount++
			descendantSize += descendant.Desc.VirtualSize
		}

		if descendantCount > policy.MaxDescendantCount {
			return ruleError(KindLimitViolation,
				"%w: tx %v would push tx %v to %d descendants (max %d)",
				ErrExceededDescendantLimit, txHash, ancestor.TxHash,
				descendantCount, policy.MaxDescendantCount)
		}

		if descendantSize > policy.MaxDescendantSize {
			return ruleError(KindLimitViolation,
				"%w: tx %v would push tx %v to %d descendant vbytes "+
					"(max %d)", ErrExceededDescendantLimit, txHash,
				ancestor.TxHash, descendantSize,
				policy.MaxDescendantSize)
		}
	}

	return nil
}

// checkPackageLimits checks the ancestor/descendant limits of every staged
// package member against a view in which the entire package is staged. A
// violation is reported for the package as a whole: a chain that is
// individually acceptable member by member can still exceed the limits once
// combined.
func checkPackageLimits(view txgraph.View,
	staged map[chainhash.Hash]*txgraph.Entry, policy *PolicyConfig) error {

	for hash, entry := range staged {
		ancestors := txgraph.Ancestors(view, hash)

		ancestorCount := len(ancestors) + 1
		ancestorSize := entry.Desc.VirtualSize
		for _, ancestor := range ancestors {
			ancestorSize += ancestor.Desc.VirtualSize
		}

		if ancestorCount > policy.MaxAncestorCount ||
			ancestorSize > policy.MaxAncestorSize {

			return ruleError(KindLimitViolation,
				"%w: tx %v has %d ancestors and %d ancestor vbytes "+
					"within the package (max %d, %d)",
				ErrExceededPackageLimits, hash, ancestorCount,
				ancestorSize, policy.MaxAncestorCount,
				policy.MaxAncestorSize)
		}

		descendants := txgraph.Descendants(view, hash)

		descendantCount := len(descendants) + 1
		descendantSize := entry.Desc.VirtualSize
		for _, descendant := range descendants {
			descendantSize += descendant.Desc.VirtualSize
		}

		if descendantCount > policy.MaxDescendantCount ||
			descendantSize > policy.MaxDescendantSize {

			return ruleError(KindLimitViolation,
				"%w: tx %v has %d descendants and %d descendant vbytes "+
					"within the package (max %d, %d)",
				ErrExceededPackageLimits, hash, descendantCount,
				descendantSize, policy.MaxDescendantCount,
				policy.MaxDescendantSize)
		}
	}

	return nil
}
