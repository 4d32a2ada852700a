// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/ismaelsadeeq/bitcoin/mempool/txgraph"
)

const (
	// MaxRBFSequence is the maximum sequence number an input can use to
	// signal that the transaction can be replaced. Per BIP 125, this is
	// 0xfffffffd.
	MaxRBFSequence = 0xfffffffd

	// MaxReplacementEvictions is the maximum number of transactions that
	// can be evicted when accepting a replacement. Bitcoin Core uses 100.
	MaxReplacementEvictions = 100

	// MaxPackageCount is the maximum number of transactions accepted in a
	// single package submission.
	MaxPackageCount = 25

	// DefaultMinRelayTxFee is the minimum fee in satoshi per 1000 vbytes
	// that is required for a transaction to be treated as free for relay.
	DefaultMinRelayTxFee = btcutil.Amount(1000)

	// DefaultRejectCacheSize is the default number of recently rejected
	// wtxids remembered by the pool.
	DefaultRejectCacheSize = 1000

	// defaultMaxTRUCVsize is the maximum virtual size of any TRUC
	// transaction.
	defaultMaxTRUCVsize = 10000

	// defaultMaxTRUCChildVsize is the maximum virtual size of a TRUC
	// transaction that has an unconfirmed parent.
	defaultMaxTRUCChildVsize = 1000
)

// PolicyConfig defines pool policy parameters. These settings control
// transaction acceptance and replacement behavior.
type PolicyConfig struct {
	// MaxRBFSequence is the maximum sequence number an input can use to
	// signal that the transaction can be replaced.
	MaxRBFSequence uint32

	// MaxReplacementEvictions is the maximum number of transactions that
	// can be evicted when accepting a replacement.
	MaxReplacementEvictions int

	// FullRBF, if true, treats every pool transaction as replaceable
	// regardless of signaling.
	FullRBF bool

	// MaxAncestorCount is the maximum number of unconfirmed ancestors
	// (including the transaction itself) allowed.
	MaxAncestorCount int

	// MaxAncestorSize is the maximum total virtual size in bytes of a
	// transaction and all its unconfirmed ancestors.
	MaxAncestorSize int64

	// MaxDescendantCount is the maximum number of transactions any pool
	// entry may count as descendants, including itself.
	MaxDescendantCount int

	// MaxDescendantSize is the maximum total virtual size in bytes of any
	// pool entry and all its descendants.
	MaxDescendantSize int64

	// MaxTRUCVsize is the maximum virtual size of a TRUC transaction.
	MaxTRUCVsize int64

	// MaxTRUCChildVsize is the maximum virtual size of a TRUC transaction
	// that has an unconfirmed parent.
	MaxTRUCChildVsize int64

	// MinRelayTxFee defines the minimum transaction fee in satoshi/kvB
	// used to compute the required fee increment for replacements.
	MinRelayTxFee btcutil.Amount
}

// DefaultPolicyConfig returns a PolicyConfig with default values matching
// Bitcoin Core's mempool policy.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MaxRBFSequence:          MaxRBFSequence,
		MaxReplacementEvictions: MaxReplacementEvictions,
		FullRBF:                 false,

		MaxAncestorCount:   25,
		MaxAncestorSize:    101000,
		MaxDescendantCount: 25,
		MaxDescendantSize:  101000,

		MaxTRUCVsize:      defaultMaxTRUCVsize,
		MaxTRUCChildVsize: defaultMaxTRUCChildVsize,

		MinRelayTxFee: DefaultMinRelayTxFee,
	}
}

// UtxoSource provides lookups of confirmed, unspent outputs. The pool uses it
// to value transaction inputs that do not spend other pool transactions.
type UtxoSource interface {
	// FetchUtxo returns the referenced output, or nil if it is unknown or
	// already spent on-chain.
	FetchUtxo(outpoint wire.OutPoint) *wire.TxOut
}

// Config holds the dependencies and settings of a Pool. All fields without a
// documented default are required.
type Config struct {
	// Policy defines the admission and replacement policy parameters.
	Policy PolicyConfig

	// UtxoSource resolves confirmed outputs for fee calculation. This
	// field is required.
	UtxoSource UtxoSource

	// GraphConfig configures the underlying transaction graph. If nil,
	// txgraph.DefaultConfig is used.
	GraphConfig *txgraph.Config

	// RejectCacheSize is the number of recently rejected wtxids to
	// remember. If zero, DefaultRejectCacheSize is used.
	RejectCacheSize uint
}

// validate checks that the required config fields are set and the policy
// values are usable.
func (c *Config) validate() error {
	if c == nil {
		return errors.New("mempool config is required")
	}
	if c.UtxoSource == nil {
		return errors.New("config field UtxoSource is required")
	}

	switch {
	case c.Policy.MaxAncestorCount <= 0:
		return errors.New("policy MaxAncestorCount must be positive")
	case c.Policy.MaxAncestorSize <= 0:
		return errors.New("policy MaxAncestorSize must be positive")
	case c.Policy.MaxDescendantCount <= 0:
		return errors.New("policy MaxDescendantCount must be positive")
	case c.Policy.MaxDescendantSize <= 0:
		return errors.New("policy MaxDescendantSize must be positive")
	case c.Policy.MaxTRUCVsize <= 0:
		return errors.New("policy MaxTRUCVsize must be positive")
	case c.Policy.MaxTRUCChildVsize <= 0:
		return errors.New("policy MaxTRUCChildVsize must be positive")
	case c.Policy.MaxReplacementEvictions <= 0:
		return errors.New("policy MaxReplacementEvictions must be positive")
	}

	return nil
}
