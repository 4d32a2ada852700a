// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TxResult holds the outcome of evaluating or submitting a single
// transaction.
type TxResult struct {
	// TxHash is the transaction hash (txid).
	TxHash chainhash.Hash

	// Wtxid is the witness transaction ID.
	Wtxid chainhash.Hash

	// VSize is the virtual size in vbytes.
	VSize int64

	// Fee is the transaction fee in satoshis.
	Fee btcutil.Amount

	// FeeRate is the transaction fee rate in satoshis per kilovbyte.
	FeeRate int64

	// Accepted indicates whether the transaction was (or, in a dry run,
	// would be) accepted into the pool.
	Accepted bool

	// Err contains the rejection reason if the transaction was not
	// accepted. Nil if Accepted is true.
	Err error

	// AlreadyInPool indicates this transaction was already resident and
	// was skipped rather than re-validated.
	AlreadyInPool bool

	// ReplacedTxs lists the transactions evicted in favor of this one.
	// Empty if no replacement occurred.
	ReplacedTxs []chainhash.Hash
}

// PackageResult holds the outcome of evaluating or submitting a package of
// transactions.
type PackageResult struct {
	// PackageErr is set when the package fails as a whole, such as a
	// combined ancestor/descendant limit violation. When set, every
	// member's result carries the same error.
	PackageErr error

	// TxResults maps each transaction's wtxid to its individual result,
	// both successful and failed.
	TxResults map[chainhash.Hash]*TxResult

	// ReplacedTxs lists all transactions evicted by members of this
	// package. Empty if no replacements occurred.
	ReplacedTxs []chainhash.Hash

	// TotalFees is the sum of fees of the accepted members.
	TotalFees btcutil.Amount

	// TotalVSize is the sum of virtual sizes of the accepted members.
	TotalVSize int64

	// PackageFeeRate is the aggregate fee rate of the accepted members in
	// satoshis per kilovbyte.
	PackageFeeRate int64

	// AcceptedCount is the number of transactions accepted.
	AcceptedCount int

	// RejectedCount is the number of transactions rejected.
	RejectedCount int
}
