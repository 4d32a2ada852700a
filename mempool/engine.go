// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/lru"
	"github.com/ismaelsadeeq/bitcoin/mempool/txgraph"
)

// Engine is the transaction pool admission and replacement policy engine. It
// owns the dependency graph of unconfirmed transactions and decides which
// candidate transactions may enter, which resident transactions they evict,
// and how packages of related transactions are evaluated together.
//
// All exported methods are safe for concurrent use. Mutating operations are
// serialized behind a write lock; Evaluate runs under a read lock against a
// copy-on-write overlay and may proceed concurrently with other read-only
// operations.
type Engine struct {
	cfg *Config

	// graph is the entry store. It performs no locking of its own; the
	// engine's mutex is the single synchronization point.
	graph *txgraph.TxGraph

	// rejected remembers the wtxids of recently rejected candidates. It
	// is advisory only and never consulted for admission decisions.
	rejected lru.Cache

	// lastUpdated is the unix time of the last pool mutation.
	lastUpdated atomic.Int64

	mu sync.RWMutex
}

// New constructs an Engine from the given config. The config is validated and
// missing optional fields are defaulted.
func New(cfg *Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	graphCfg := cfg.GraphConfig
	if graphCfg == nil {
		graphCfg = txgraph.DefaultConfig()
	}

	rejectCacheSize := cfg.RejectCacheSize
	if rejectCacheSize == 0 {
		rejectCacheSize = DefaultRejectCacheSize
	}

	e := &Engine{
		cfg:      cfg,
		graph:    txgraph.New(graphCfg),
		rejected: lru.NewCache(rejectCacheSize),
	}
	e.lastUpdated.Store(time.Now().Unix())

	log.InfoS(context.Background(), "Initialized mempool engine",
		"max_ancestor_count", cfg.Policy.MaxAncestorCount,
		"max_descendant_count", cfg.Policy.MaxDescendantCount,
		"max_replacement_evictions", cfg.Policy.MaxReplacementEvictions,
		"full_rbf", cfg.Policy.FullRBF,
		"min_relay_fee", cfg.Policy.MinRelayTxFee)

	return e, nil
}

// candidate is a fully validated transaction together with everything needed
// to commit it: its descriptor and the eviction set its admission triggers.
type candidate struct {
	tx    *btcutil.Tx
	desc  *txgraph.TxDesc
	evict *evictionSet
}

// resolveFee computes the fee a transaction pays by valuing its inputs from
// the view's entries and the configured UtxoSource. An input that resolves to
// neither is reported as missing; the pool keeps no orphans.
func (e *Engine) resolveFee(view txgraph.View, tx *btcutil.Tx) (int64, error) {
	var totalIn, totalOut int64

	for _, txOut := range tx.MsgTx().TxOut {
		totalOut += txOut.Value
	}

	for _, txIn := range tx.MsgTx().TxIn {
		outpoint := txIn.PreviousOutPoint

		if parent, exists := view.Get(outpoint.Hash); exists {
			outputs := parent.Tx.MsgTx().TxOut
			if int(outpoint.Index) >= len(outputs) {
				return 0, ruleError(KindMissingInputs,
					"tx %v references non-existent output %v",
					tx.Hash(), outpoint)
			}
			totalIn += outputs[outpoint.Index].Value
			continue
		}

		utxo := e.cfg.UtxoSource.FetchUtxo(outpoint)
		if utxo == nil {
			return 0, ruleError(KindMissingInputs,
				"tx %v references unknown or spent output %v",
				tx.Hash(), outpoint)
		}
		totalIn += utxo.Value
	}

	return totalIn - totalOut, nil
}

// validateCandidate runs the full admission pipeline for one transaction
// against the given view: input resolution, conflict discovery, TRUC topology
// checks, ancestor/descendant limits, and replacement validation. It mutates
// nothing; on success the returned candidate can be committed to the live
// graph or staged on an overlay.
//
// packageTxns names the members of the in-flight package already admitted in
// this call, used to refuse intra-package conflicts. allowSiblingEviction
// enables the TRUC sibling eviction path and must only be set for single
// transaction submission.
func (e *Engine) validateCandidate(view txgraph.View, tx *btcutil.Tx,
	allowSiblingEviction bool,
	packageTxns map[chainhash.Hash]struct{}) (*candidate, error) {

	txHash := tx.Hash()
	policy := &e.cfg.Policy

	fee, err := e.resolveFee(view, tx)
	if err != nil {
		return nil, err
	}
	vsize := GetTxVirtualSize(tx)

	conflicts := txgraph.ConflictsOf(view, tx)
	for conflictHash := range conflicts.Direct {
		if _, inPackage := packageTxns[conflictHash]; inPackage {
			return nil, ruleError(KindConflictUnresolved,
				"%w: tx %v conflicts with tx %v in the same package",
				ErrUnresolvableConflict, txHash, conflictHash)
		}
	}

	ancestors := txgraph.AncestorsOfTx(view, tx)

	sibling, trucErr := checkTRUCPolicy(
		view, tx, vsize, ancestors, conflicts.Direct, policy,
		allowSiblingEviction,
	)
	if trucErr != nil && sibling == nil {
		return nil, trucErr
	}

	// Assemble the eviction set before the limit checks so evicted
	// entries stop counting against the limits.
	var evict *evictionSet
	if len(conflicts.Direct) > 0 || sibling != nil {
		evict = buildEvictionSet(view, conflicts, sibling)

		// A candidate that descends from a member of its own eviction
		// set can never be committed: evicting the member would strip
		// the candidate of an ancestor. Likewise the eviction set may
		// not reach a member accepted earlier from the same package,
		// directly or through a cascading removal; admitting the
		// candidate would silently undo an admission this call already
		// reported.
		for evictHash := range evict.all {
			if _, isAncestor := ancestors[evictHash]; isAncestor {
				return nil, ruleError(KindConflictUnresolved,
					"%w: replacement %v spends output of conflicting "+
						"tx %v", ErrUnresolvableConflict, txHash,
					evictHash)
			}
			if _, inPackage := packageTxns[evictHash]; inPackage {
				return nil, ruleError(KindConflictUnresolved,
					"%w: replacement %v would evict tx %v accepted "+
						"from the same package", ErrUnresolvableConflict,
					txHash, evictHash)
			}
		}
	}

	var excluded map[chainhash.Hash]*txgraph.Entry
	if evict != nil {
		excluded = evict.all
	}

	err = checkAncestorLimits(ancestors, txHash, vsize, policy)
	if err != nil {
		return nil, err
	}
	err = checkDescendantLimits(view, ancestors, excluded, txHash, vsize, policy)
	if err != nil {
		return nil, err
	}

	if evict != nil {
		err = validateReplacement(txHash, fee, vsize, evict, policy)
		if err != nil {
			return nil, err
		}
	}

	desc := &txgraph.TxDesc{
		TxHash:      *txHash,
		Wtxid:       *tx.WitnessHash(),
		VirtualSize: vsize,
		Fee:         fee,
		FeePerKB:    feeRatePerKB(fee, vsize),
		Added:       time.Now(),
		Replaceable: computeReplaceable(tx, ancestors, policy.MaxRBFSequence),
	}

	return &candidate{tx: tx, desc: desc, evict: evict}, nil
}

// commit applies a validated candidate to the live graph: the eviction set is
// removed and the candidate added, in that order, under the caller-held write
// lock. Returns the hashes of the evicted transactions.
func (e *Engine) commit(cand *candidate) ([]chainhash.Hash, error) {
	var replaced []chainhash.Hash

	if cand.evict != nil {
		for hash := range cand.evict.all {
			replaced = append(replaced, hash)
		}
		// Cascading removal of the direct conflicts covers their
		// descendants as well.
		for hash := range cand.evict.direct {
			if e.graph.Has(hash) {
				if err := e.graph.Remove(hash); err != nil {
					return nil, err
				}
			}
		}
	}

	if _, err := e.graph.Add(cand.tx, cand.desc); err != nil {
		return nil, err
	}

	e.lastUpdated.Store(time.Now().Unix())

	return replaced, nil
}

// SubmitTx validates a single transaction against the pool and commits it on
// success, evicting any transactions it replaces. This is the only admission
// path on which TRUC sibling eviction is available.
//
// The returned TxResult describes the accepted transaction; a policy
// rejection is returned as a RuleError.
func (e *Engine) SubmitTx(tx *btcutil.Tx) (*TxResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx := context.Background()
	txHash := *tx.Hash()
	wtxid := *tx.WitnessHash()

	if e.graph.Has(txHash) {
		return nil, ruleError(KindDuplicate,
			"already have transaction %v in pool", txHash)
	}

	cand, err := e.validateCandidate(e.graph, tx, true, nil)
	if err != nil {
		e.rejected.Add(wtxid)
		log.DebugS(ctx, "Transaction rejected",
			"txid", txHash, "reason", err)
		return nil, err
	}

	replaced, err := e.commit(cand)
	if err != nil {
		return nil, err
	}

	log.DebugS(ctx, "Transaction accepted",
		"txid", txHash,
		"vsize", cand.desc.VirtualSize,
		"fee", cand.desc.Fee,
		"pool_size", e.graph.Count())
	if len(replaced) > 0 {
		log.InfoS(ctx, "Replacement accepted",
			"txid", txHash, "evicted", len(replaced))
	}

	return &TxResult{
		TxHash:      txHash,
		Wtxid:       wtxid,
		VSize:       cand.desc.VirtualSize,
		Fee:         btcutil.Amount(cand.desc.Fee),
		FeeRate:     cand.desc.FeePerKB,
		Accepted:    true,
		ReplacedTxs: replaced,
	}, nil
}

// Evaluate runs the full package pipeline against the current pool state
// without mutating it and reports the per-transaction outcomes. Accepted
// members are staged on a copy-on-write overlay so later members resolve them
// as parents. A package whose combined topology exceeds the ancestor or
// descendant limits fails as a whole via PackageResult.PackageErr.
//
// For identical input and pool state, Evaluate reports exactly what
// SubmitPackage would do.
func (e *Engine) Evaluate(txs []*btcutil.Tx) (*PackageResult, error) {
	if err := checkPackageSanity(txs); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.evaluatePackage(txs, false)
}

// SubmitPackage validates a package of transactions, in order, against the
// live pool and commits the members that pass. Admission is progressive: an
// accepted member immediately becomes a resolvable parent for later members,
// and a rejected member does not abort the rest. The one package-wide failure
// is a combined ancestor/descendant limit violation, detected before any
// member is committed.
//
// Members already resident in the pool are deduplicated: reported as accepted
// without being re-validated. TRUC sibling eviction is never available on the
// package path, not even for a single-member package.
func (e *Engine) SubmitPackage(txs []*btcutil.Tx) (*PackageResult, error) {
	if err := checkPackageSanity(txs); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.evaluatePackage(txs, true)
}

// checkPackageSanity rejects malformed package submissions outright. These
// are call errors, not per-transaction policy rejections.
func checkPackageSanity(txs []*btcutil.Tx) error {
	if len(txs) == 0 {
		return errors.New("package is empty")
	}
	if len(txs) > MaxPackageCount {
		return fmt.Errorf("package contains %d transactions (max %d)",
			len(txs), MaxPackageCount)
	}

	seen := make(map[chainhash.Hash]struct{}, len(txs))
	for _, tx := range txs {
		hash := *tx.Hash()
		if _, dup := seen[hash]; dup {
			return fmt.Errorf("package contains duplicate transaction %v",
				hash)
		}
		seen[hash] = struct{}{}
	}

	return nil
}

// evaluatePackage is the shared package pipeline. With mutate set, accepted
// members are committed to the live graph; otherwise they are staged on an
// overlay that is discarded when the call returns. Both modes run the same
// per-transaction validation, which is what keeps Evaluate and SubmitPackage
// in lockstep.
func (e *Engine) evaluatePackage(txs []*btcutil.Tx,
	mutate bool) (*PackageResult, error) {

	ctx := context.Background()

	result := &PackageResult{
		TxResults: make(map[chainhash.Hash]*TxResult, len(txs)),
	}

	// Package-wide limit pre-check: stage every resolvable member on a
	// scratch overlay and check the combined closures. A violation fails
	// the package before anything is committed.
	scratch := txgraph.NewOverlay(e.graph)
	staged := make(map[chainhash.Hash]*txgraph.Entry)
	for _, tx := range txs {
		hash := *tx.Hash()
		if e.graph.Has(hash) || !inputsResolvable(scratch, e.cfg.UtxoSource, tx) {
			continue
		}

		entry := scratch.Stage(tx, &txgraph.TxDesc{
			TxHash:      hash,
			Wtxid:       *tx.WitnessHash(),
			VirtualSize: GetTxVirtualSize(tx),
		})
		staged[hash] = entry
	}

	if err := checkPackageLimits(scratch, staged, &e.cfg.Policy); err != nil {
		log.DebugS(ctx, "Package rejected as a whole",
			"txns", len(txs), "reason", err)

		result.PackageErr = err
		result.RejectedCount = len(txs)
		for _, tx := range txs {
			wtxid := *tx.WitnessHash()
			result.TxResults[wtxid] = &TxResult{
				TxHash: *tx.Hash(),
				Wtxid:  wtxid,
				Err:    err,
			}
		}
		return result, nil
	}

	// Per-transaction pipeline, in submission order.
	var view *txgraph.Overlay
	if !mutate {
		view = txgraph.NewOverlay(e.graph)
	}

	admitted := make(map[chainhash.Hash]struct{}, len(txs))
	for _, tx := range txs {
		hash := *tx.Hash()
		wtxid := *tx.WitnessHash()

		txResult := &TxResult{TxHash: hash, Wtxid: wtxid}
		result.TxResults[wtxid] = txResult

		// Members already resident before this call are deduplicated,
		// not re-validated.
		if e.graph.Has(hash) {
			log.DebugS(ctx, "Package transaction already in pool",
				"txid", hash)
			txResult.Accepted = true
			txResult.AlreadyInPool = true
			result.AcceptedCount++
			continue
		}

		var validationView txgraph.View = e.graph
		if !mutate {
			validationView = view
		}

		cand, err := e.validateCandidate(validationView, tx, false, admitted)
		if err != nil {
			log.DebugS(ctx, "Package transaction rejected",
				"txid", hash, "reason", err)
			if mutate {
				e.rejected.Add(wtxid)
			}
			txResult.Err = err
			result.RejectedCount++
			continue
		}

		var replaced []chainhash.Hash
		if mutate {
			replaced, err = e.commit(cand)
			if err != nil {
				txResult.Err = err
				result.RejectedCount++
				continue
			}
		} else {
			if cand.evict != nil {
				for evictHash := range cand.evict.all {
					replaced = append(replaced, evictHash)
				}
				for evictHash := range cand.evict.direct {
					view.StageRemove(evictHash)
				}
			}
			view.Stage(tx, cand.desc)
		}

		admitted[hash] = struct{}{}
		txResult.Accepted = true
		txResult.VSize = cand.desc.VirtualSize
		txResult.Fee = btcutil.Amount(cand.desc.Fee)
		txResult.FeeRate = cand.desc.FeePerKB
		txResult.ReplacedTxs = replaced

		result.ReplacedTxs = append(result.ReplacedTxs, replaced...)
		result.AcceptedCount++
		result.TotalFees += btcutil.Amount(cand.desc.Fee)
		result.TotalVSize += cand.desc.VirtualSize
	}

	result.PackageFeeRate = feeRatePerKB(int64(result.TotalFees), result.TotalVSize)

	if mutate {
		log.InfoS(ctx, "Package processed",
			"txns", len(txs),
			"accepted", result.AcceptedCount,
			"rejected", result.RejectedCount,
			"replaced", len(result.ReplacedTxs))
	}

	return result, nil
}

// inputsResolvable reports whether every input of the transaction resolves to
// an in-view entry output or a known UTXO. Used only by the package limit
// pre-check; members that fail it are validated (and rejected) individually.
func inputsResolvable(view txgraph.View, utxos UtxoSource, tx *btcutil.Tx) bool {
	for _, txIn := range tx.MsgTx().TxIn {
		outpoint := txIn.PreviousOutPoint

		if parent, exists := view.Get(outpoint.Hash); exists {
			if int(outpoint.Index) >= len(parent.Tx.MsgTx().TxOut) {
				return false
			}
			continue
		}
		if utxos.FetchUtxo(outpoint) == nil {
			return false
		}
	}
	return true
}

// Restore re-admits a transaction to the pool after a block disconnect. No
// policy runs: the transaction was acceptable when first admitted, and the
// pool must reflect chain state even if current limits would now refuse it.
// Resident children that spend the restored transaction are re-linked to it.
func (e *Engine) Restore(tx *btcutil.Tx) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	hash := *tx.Hash()
	if e.graph.Has(hash) {
		return nil
	}

	vsize := GetTxVirtualSize(tx)

	// Disconnected transactions may spend outputs the pool can no longer
	// value; the fee then records as zero.
	fee, err := e.resolveFee(e.graph, tx)
	if err != nil {
		fee = 0
	}

	ancestors := txgraph.AncestorsOfTx(e.graph, tx)
	desc := &txgraph.TxDesc{
		TxHash:      hash,
		Wtxid:       *tx.WitnessHash(),
		VirtualSize: vsize,
		Fee:         fee,
		FeePerKB:    feeRatePerKB(fee, vsize),
		Added:       time.Now(),
		Replaceable: computeReplaceable(
			tx, ancestors, e.cfg.Policy.MaxRBFSequence,
		),
	}

	if _, err := e.graph.Add(tx, desc); err != nil {
		return err
	}

	e.lastUpdated.Store(time.Now().Unix())
	log.DebugS(context.Background(), "Restored transaction after reorg",
		"txid", hash, "pool_size", e.graph.Count())

	return nil
}

// Confirm removes a transaction from the pool because a connected block
// includes it. The removal does not cascade: children remain, now spending a
// confirmed output. Any resident transaction that double-spends an input of
// the confirmed transaction is evicted along with its descendants.
func (e *Engine) Confirm(tx *btcutil.Tx) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hash := *tx.Hash()

	// Evict double spends first; the confirmed transaction's own entry is
	// among the spenders of its inputs and is skipped.
	conflicts := txgraph.ConflictsOf(e.graph, tx)
	for conflictHash := range conflicts.Direct {
		if conflictHash == hash {
			continue
		}
		if e.graph.Has(conflictHash) {
			if err := e.graph.Remove(conflictHash); err != nil {
				log.WarnS(context.Background(),
					"Failed to remove double spend", err,
					"txid", conflictHash)
			}
		}
	}

	if e.graph.Has(hash) {
		_ = e.graph.RemoveNoCascade(hash)
	}

	e.lastUpdated.Store(time.Now().Unix())
}

// Count returns the number of transactions in the pool.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.graph.Count()
}

// Have reports whether the given transaction is in the pool.
func (e *Engine) Have(hash *chainhash.Hash) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.graph.Has(*hash)
}

// EntryAggregates reports the cached relationship aggregates of a pool entry.
// Counts and sizes include the entry itself, matching how operators reason
// about the limits.
type EntryAggregates struct {
	// VSize is the entry's own virtual size.
	VSize int64

	// Fee is the entry's own fee in satoshis.
	Fee btcutil.Amount

	// AncestorCount is the number of unconfirmed ancestors plus one for
	// the entry itself.
	AncestorCount int

	// AncestorSize is the combined virtual size of the entry and its
	// unconfirmed ancestors.
	AncestorSize int64

	// DescendantCount is the number of unconfirmed descendants plus one
	// for the entry itself.
	DescendantCount int

	// DescendantSize is the combined virtual size of the entry and its
	// unconfirmed descendants.
	DescendantSize int64
}

// EntryAggregates returns the relationship aggregates of a pool entry, or
// false if the transaction is not in the pool.
func (e *Engine) EntryAggregates(hash *chainhash.Hash) (*EntryAggregates, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, exists := e.graph.Get(*hash)
	if !exists {
		return nil, false
	}

	return &EntryAggregates{
		VSize:           entry.Desc.VirtualSize,
		Fee:             btcutil.Amount(entry.Desc.Fee),
		AncestorCount:   entry.AncestorCount + 1,
		AncestorSize:    entry.AncestorSize + entry.Desc.VirtualSize,
		DescendantCount: entry.DescendantCount + 1,
		DescendantSize:  entry.DescendantSize + entry.Desc.VirtualSize,
	}, true
}

// TxHashes returns the hashes of all transactions in the pool.
func (e *Engine) TxHashes() []*chainhash.Hash {
	e.mu.RLock()
	defer e.mu.RUnlock()

	hashes := make([]*chainhash.Hash, 0, e.graph.Count())
	for entry := range e.graph.Iterate() {
		hash := entry.TxHash
		hashes = append(hashes, &hash)
	}

	return hashes
}

// LastUpdated returns the last time a transaction was added to or removed
// from the pool.
func (e *Engine) LastUpdated() time.Time {
	return time.Unix(e.lastUpdated.Load(), 0)
}

// RecentlyRejected reports whether a candidate with the given wtxid was
// recently refused admission. Advisory only: the cache is bounded and an
// entry's absence proves nothing.
func (e *Engine) RecentlyRejected(wtxid *chainhash.Hash) bool {
	return e.rejected.Contains(*wtxid)
}
