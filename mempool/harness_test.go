// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// fakeUtxoSource is a map-backed UtxoSource for tests.
type fakeUtxoSource struct {
	utxos map[wire.OutPoint]*wire.TxOut
}

func newFakeUtxoSource() *fakeUtxoSource {
	return &fakeUtxoSource{
		utxos: make(map[wire.OutPoint]*wire.TxOut),
	}
}

// FetchUtxo returns the registered output for the outpoint, or nil.
func (f *fakeUtxoSource) FetchUtxo(outpoint wire.OutPoint) *wire.TxOut {
	return f.utxos[outpoint]
}

// input describes one spend for buildTx: the outpoint, the value it carries
// and the sequence number to use.
type input struct {
	outpoint wire.OutPoint
	value    int64
	sequence uint32
}

// poolHarness wires an Engine to a fake UTXO source and provides helpers for
// building chains of spendable test transactions.
type poolHarness struct {
	t       *testing.T
	utxos   *fakeUtxoSource
	engine  *Engine
	counter uint32
}

// newPoolHarness creates a harness with the default policy.
func newPoolHarness(t *testing.T) *poolHarness {
	t.Helper()
	return newPoolHarnessWithPolicy(t, DefaultPolicyConfig())
}

// newPoolHarnessWithPolicy creates a harness with a custom policy.
func newPoolHarnessWithPolicy(t *testing.T, policy PolicyConfig) *poolHarness {
	t.Helper()

	utxos := newFakeUtxoSource()
	engine, err := New(&Config{
		Policy:     policy,
		UtxoSource: utxos,
	})
	require.NoError(t, err, "failed to create test engine")

	return &poolHarness{
		t:      t,
		utxos:  utxos,
		engine: engine,
	}
}

// uniqueScript returns a distinct script each call so otherwise identical
// transactions get distinct txids.
func (h *poolHarness) uniqueScript(size int) []byte {
	h.counter++
	if size < 8 {
		size = 8
	}
	script := make([]byte, size)
	binary.LittleEndian.PutUint32(script, h.counter)
	return script
}

// confirmedInput registers a fresh confirmed UTXO of the given value and
// returns an input spending it with a non-signaling sequence.
func (h *poolHarness) confirmedInput(value int64) input {
	var hash chainhash.Hash
	h.counter++
	binary.LittleEndian.PutUint32(hash[:], h.counter)
	hash[31] = 0xc0 // keep fake coin hashes out of real txid space

	outpoint := wire.OutPoint{Hash: hash, Index: 0}
	h.utxos.utxos[outpoint] = &wire.TxOut{
		Value:    value,
		PkScript: h.uniqueScript(16),
	}

	return input{
		outpoint: outpoint,
		value:    value,
		sequence: wire.MaxTxInSequenceNum,
	}
}

// spendOf returns an input spending the given output of a previously built
// transaction with a non-signaling sequence.
func spendOf(tx *btcutil.Tx, index uint32) input {
	return input{
		outpoint: wire.OutPoint{Hash: *tx.Hash(), Index: index},
		value:    tx.MsgTx().TxOut[index].Value,
		sequence: wire.MaxTxInSequenceNum,
	}
}

// signaling returns the input with its sequence lowered to signal
// replaceability.
func signaling(in input) input {
	in.sequence = MaxRBFSequence
	return in
}

// buildTx assembles a transaction spending the given inputs with numOutputs
// equal-valued outputs, such that exactly fee satoshis are left on the table.
func (h *poolHarness) buildTx(version int32, fee int64, numOutputs int,
	inputs ...input) *btcutil.Tx {

	h.t.Helper()
	require.NotEmpty(h.t, inputs, "transaction needs at least one input")

	var totalIn int64
	msgTx := wire.NewMsgTx(version)
	for _, in := range inputs {
		totalIn += in.value
		msgTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: in.outpoint,
			Sequence:         in.sequence,
		})
	}

	require.Greater(h.t, totalIn, fee, "inputs must cover the fee")
	outValue := (totalIn - fee) / int64(numOutputs)
	for i := 0; i < numOutputs; i++ {
		msgTx.AddTxOut(&wire.TxOut{
			Value:    outValue,
			PkScript: h.uniqueScript(16),
		})
	}

	return btcutil.NewTx(msgTx)
}

// buildLargeTx is buildTx with a single output padded to the given script
// size, used to push a transaction's virtual size over a policy ceiling.
func (h *poolHarness) buildLargeTx(version int32, fee int64, scriptSize int,
	inputs ...input) *btcutil.Tx {

	h.t.Helper()

	var totalIn int64
	msgTx := wire.NewMsgTx(version)
	for _, in := range inputs {
		totalIn += in.value
		msgTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: in.outpoint,
			Sequence:         in.sequence,
		})
	}

	require.Greater(h.t, totalIn, fee, "inputs must cover the fee")
	msgTx.AddTxOut(&wire.TxOut{
		Value:    totalIn - fee,
		PkScript: h.uniqueScript(scriptSize),
	})

	return btcutil.NewTx(msgTx)
}

// confirmTx confirms the transaction and registers its outputs as spendable
// confirmed UTXOs, the way a connected block would.
func (h *poolHarness) confirmTx(tx *btcutil.Tx) {
	h.engine.Confirm(tx)
	for i, txOut := range tx.MsgTx().TxOut {
		outpoint := wire.OutPoint{Hash: *tx.Hash(), Index: uint32(i)}
		h.utxos.utxos[outpoint] = txOut
	}
}

// submit runs SubmitTx and requires acceptance.
func (h *poolHarness) submit(tx *btcutil.Tx) *TxResult {
	h.t.Helper()
	result, err := h.engine.SubmitTx(tx)
	require.NoError(h.t, err, "expected tx %v to be accepted", tx.Hash())
	require.True(h.t, result.Accepted)
	return result
}

// reject runs SubmitTx and requires a rejection of the given kind.
func (h *poolHarness) reject(tx *btcutil.Tx, kind RejectKind) error {
	h.t.Helper()
	_, err := h.engine.SubmitTx(tx)
	require.Error(h.t, err, "expected tx %v to be rejected", tx.Hash())
	require.True(h.t, IsKind(err, kind),
		"expected kind %v, got error %v", kind, err)
	return err
}
