// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReplacementSignaling verifies that a conflicting transaction is only
// replaceable when it signals, and that FullRBF overrides signaling.
func TestReplacementSignaling(t *testing.T) {
	t.Parallel()

	h := newPoolHarness(t)

	coin := h.confirmedInput(100_000_000)

	// Non-signaling v2 transaction.
	original := h.buildTx(2, 1000, 1, coin)
	h.submit(original)

	replacement := h.buildTx(2, 10000, 1, coin)
	err := h.reject(replacement, KindReplacementRejected)
	require.ErrorIs(t, err, ErrNonReplaceable)
	require.True(t, h.engine.Have(original.Hash()))

	// The same conflict with signaling goes through.
	coin2 := h.confirmedInput(100_000_000)
	signalingTx := h.buildTx(2, 1000, 1, signaling(coin2))
	h.submit(signalingTx)

	replacement2 := h.buildTx(2, 10000, 1, coin2)
	result := h.submit(replacement2)
	require.Contains(t, result.ReplacedTxs, *signalingTx.Hash())
	require.False(t, h.engine.Have(signalingTx.Hash()))
}

// TestReplacementFullRBF verifies that with FullRBF configured, signaling is
// not required.
func TestReplacementFullRBF(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicyConfig()
	policy.FullRBF = true
	h := newPoolHarnessWithPolicy(t, policy)

	coin := h.confirmedInput(100_000_000)
	original := h.buildTx(2, 1000, 1, coin)
	h.submit(original)

	replacement := h.buildTx(2, 10000, 1, coin)
	result := h.submit(replacement)
	require.Contains(t, result.ReplacedTxs, *original.Hash())
}

// TestReplacementInheritedSignaling verifies that a non-signaling transaction
// with a signaling unconfirmed ancestor is replaceable.
func TestReplacementInheritedSignaling(t *testing.T) {
	t.Parallel()

	h := newPoolHarness(t)

	parent := h.buildTx(2, 1000, 1, signaling(h.confirmedInput(100_000_000)))
	h.submit(parent)

	// Child does not signal on its own inputs.
	child := h.buildTx(2, 1000, 1, spendOf(parent, 0))
	h.submit(child)

	replacement := h.buildTx(2, 10000, 1, spendOf(parent, 0))
	result := h.submit(replacement)
	require.Contains(t, result.ReplacedTxs, *child.Hash())
}

// TestReplacementAbsoluteFee verifies that a replacement must pay the evicted
// fees plus the relay increment, checked before the feerate comparison.
func TestReplacementAbsoluteFee(t *testing.T) {
	t.Parallel()

	h := newPoolHarness(t)

	// A large, low-feerate original.
	coin := h.confirmedInput(100_000_000)
	original := h.buildLargeTx(2, 50000, 5000, signaling(coin))
	h.submit(original)

	// Small replacement: higher feerate, lower absolute fee.
	replacement := h.buildTx(2, 10000, 1, coin)
	err := h.reject(replacement, KindReplacementRejected)
	require.ErrorIs(t, err, ErrInsufficientAbsoluteFee)
	require.Contains(t, err.Error(), "not enough additional fees to relay")
}

// TestReplacementFeeRate verifies that a replacement's feerate must strictly
// exceed that of every directly evicted transaction.
func TestReplacementFeeRate(t *testing.T) {
	t.Parallel()

	h := newPoolHarness(t)

	// A small, high-feerate original.
	coin := h.confirmedInput(100_000_000)
	original := h.buildTx(2, 50000, 1, signaling(coin))
	h.submit(original)

	// Large replacement: pays more in total but at a lower rate.
	replacement := h.buildLargeTx(2, 60000, 5000, coin)
	err := h.reject(replacement, KindReplacementRejected)
	require.ErrorIs(t, err, ErrInsufficientFeeRate)
	require.Contains(t, err.Error(), "new feerate")
}

// TestReplacementEvictionLimit verifies the eviction-count ceiling: evicting
// up to the limit succeeds, one more fails without mutating the pool.
func TestReplacementEvictionLimit(t *testing.T) {
	t.Parallel()

	h := newPoolHarness(t)

	count := MaxReplacementEvictions + 1
	coins := make([]input, count)
	for i := 0; i < count; i++ {
		coins[i] = signaling(h.confirmedInput(10_000_000))
		original := h.buildTx(2, 1000, 1, coins[i])
		h.submit(original)
	}
	require.Equal(t, count, h.engine.Count())

	// Conflicts with all 101 residents.
	tooMany := h.buildTx(2, 10_000_000, 1, coins...)
	err := h.reject(tooMany, KindReplacementRejected)
	require.ErrorIs(t, err, ErrTooManyEvictions)
	require.Contains(t, err.Error(), "too many potential replacements")
	require.Equal(t, count, h.engine.Count(), "failed replacement must not mutate")

	// Conflicting with exactly the limit succeeds.
	okMany := h.buildTx(2, 10_000_000, 1, coins[:MaxReplacementEvictions]...)
	result := h.submit(okMany)
	require.Len(t, result.ReplacedTxs, MaxReplacementEvictions)
	require.Equal(t, 2, h.engine.Count())
}

// TestReplacementDescendsFromEvicted verifies that a candidate spending an
// output of a transaction in its own eviction set is rejected as an
// unresolvable conflict.
func TestReplacementDescendsFromEvicted(t *testing.T) {
	t.Parallel()

	h := newPoolHarness(t)

	coin := h.confirmedInput(100_000_000)
	parent := h.buildTx(2, 1000, 2, signaling(coin))
	h.submit(parent)

	child := h.buildTx(2, 1000, 1, spendOf(parent, 0))
	h.submit(child)

	// Double-spends the parent's coin while also spending the child's
	// output: the candidate would evict its own ancestors.
	impossible := h.buildTx(2, 50000, 1, coin, spendOf(child, 0))
	err := h.reject(impossible, KindConflictUnresolved)
	require.ErrorIs(t, err, ErrUnresolvableConflict)

	require.True(t, h.engine.Have(parent.Hash()))
	require.True(t, h.engine.Have(child.Hash()))
}

// TestReplacementEvictsDescendants verifies that descendants of a replaced
// transaction leave the pool with it and count toward the evicted fees.
func TestReplacementEvictsDescendants(t *testing.T) {
	t.Parallel()

	h := newPoolHarness(t)

	coin := h.confirmedInput(100_000_000)
	parent := h.buildTx(2, 1000, 2, signaling(coin))
	h.submit(parent)

	child := h.buildTx(2, 2000, 1, spendOf(parent, 0))
	h.submit(child)
	grandchild := h.buildTx(2, 3000, 1, spendOf(child, 0))
	h.submit(grandchild)

	// Must outbid the whole chain of evicted fees.
	cheap := h.buildTx(2, 5000, 1, coin)
	err := h.reject(cheap, KindReplacementRejected)
	require.ErrorIs(t, err, ErrInsufficientAbsoluteFee)

	replacement := h.buildTx(2, 10000, 1, coin)
	result := h.submit(replacement)
	require.Len(t, result.ReplacedTxs, 3)
	require.False(t, h.engine.Have(child.Hash()))
	require.False(t, h.engine.Have(grandchild.Hash()))
	require.Equal(t, 1, h.engine.Count())
}
