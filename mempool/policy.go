// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ismaelsadeeq/bitcoin/mempool/txgraph"
)

// calcMinRequiredTxRelayFee returns the minimum fee in satoshi that is
// required for a transaction of the given virtual size to be accepted as a
// replacement fee increment.
func calcMinRequiredTxRelayFee(vsize int64, minRelayTxFee btcutil.Amount) int64 {
	// minRelayTxFee is in Satoshi/kvB so multiply by vsize (which is in
	// vbytes) and divide by 1000 to get minimum Satoshis.
	minFee := (vsize * int64(minRelayTxFee)) / 1000

	if minFee == 0 && minRelayTxFee > 0 {
		minFee = int64(minRelayTxFee)
	}

	// Set the minimum fee to the maximum possible value if the calculated
	// fee is not in the valid range for monetary amounts.
	if minFee < 0 || minFee > btcutil.MaxSatoshi {
		minFee = btcutil.MaxSatoshi
	}

	return minFee
}

// GetTxVirtualSize computes the virtual size of a given transaction. A
// transaction's virtual size is based off its weight, creating a discount for
// any witness data its inputs provide.
func GetTxVirtualSize(tx *btcutil.Tx) int64 {
	// vSize := (weight(tx) + 3) / 4
	//       := (((baseSize * 3) + totalSize) + 3) / 4
	// We add 3 here as a way to compute the ceiling of the prior arithmetic
	// to 4. The division by 4 creates a discount for wit witness data.
	return (blockchain.GetTransactionWeight(tx) + (blockchain.WitnessScaleFactor - 1)) /
		blockchain.WitnessScaleFactor
}

// feeRatePerKB returns the fee rate in satoshi per 1000 vbytes.
func feeRatePerKB(fee, vsize int64) int64 {
	if vsize <= 0 {
		return 0
	}
	return fee * 1000 / vsize
}

// signalsExplicitRBF reports whether any of the transaction's own inputs
// carries a sequence number that signals replaceability per BIP 125.
func signalsExplicitRBF(tx *btcutil.Tx, maxRBFSequence uint32) bool {
	for _, txIn := range tx.MsgTx().TxIn {
		if txIn.Sequence <= maxRBFSequence {
			return true
		}
	}
	return false
}

// computeReplaceable folds together the three ways a candidate becomes
// replaceable: explicit signaling on its own inputs, inherited signaling from
// any unconfirmed ancestor, and the implicit replaceability of TRUC
// transactions. The ancestor entries already carry their own folded flag, so
// inheritance is a single pass over the closure.
func computeReplaceable(tx *btcutil.Tx,
	ancestors map[chainhash.Hash]*txgraph.Entry, maxRBFSequence uint32) bool {

	if tx.MsgTx().Version == txgraph.TRUCVersion {
		return true
	}

	if signalsExplicitRBF(tx, maxRBFSequence) {
		return true
	}

	for _, ancestor := range ancestors {
		if ancestor.Desc.Replaceable {
			return true
		}
	}

	return false
}
