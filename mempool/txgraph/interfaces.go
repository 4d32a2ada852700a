package txgraph

import (
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// TRUCVersion is the transaction version that opts a transaction into
	// the topologically restricted until confirmation (TRUC) rules.
	TRUCVersion = 3
)

var (
	// ErrEntryExists is returned when attempting to add a duplicate
	// transaction.
	ErrEntryExists = errors.New("transaction already exists in graph")

	// ErrEntryNotFound is returned when an entry is not found in the graph.
	ErrEntryNotFound = errors.New("entry not found in graph")

	// ErrGraphFull is returned when the graph is at capacity.
	ErrGraphFull = errors.New("graph at capacity")
)

// Config defines configuration for the transaction graph.
type Config struct {
	// MaxEntries limits graph capacity to prevent unbounded memory growth.
	// When reached, new transaction additions will be rejected, triggering
	// eviction policies in the caller.
	MaxEntries int
}

// DefaultConfig returns the default graph configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries: 100000,
	}
}

// TxDesc contains the admission-time metadata of a pool transaction. The fee
// and size fields are computed once when the transaction is accepted and never
// change for the life of the entry.
type TxDesc struct {
	// TxHash is the transaction identifier used for graph lookups and
	// relationship tracking.
	TxHash chainhash.Hash

	// Wtxid is the witness transaction identifier, reported alongside the
	// txid in policy rejection messages.
	Wtxid chainhash.Hash

	// VirtualSize is used to calculate ancestor/descendant size limits and
	// to compute effective fee rates.
	VirtualSize int64

	// Fee is the total fee the transaction pays in satoshis.
	Fee int64

	// FeePerKB is the fee the transaction pays per 1000 virtual bytes.
	FeePerKB int64

	// Added tracks insertion time to provide ordering for transactions
	// with identical fee rates.
	Added time.Time

	// Replaceable reports whether the transaction may be evicted by a
	// conflicting transaction. It folds together explicit signaling on the
	// transaction's own inputs, signaling inherited from unconfirmed
	// ancestors, and the implicit replaceability of TRUC transactions.
	Replaceable bool
}

// Entry represents a single transaction resident in the graph, together with
// its dependency edges and cached relationship aggregates.
type Entry struct {
	// TxHash enables O(1) lookups in maps without dereferencing Tx.
	TxHash chainhash.Hash

	// Tx provides access to inputs and outputs for validation and edge
	// creation.
	Tx *btcutil.Tx

	// Desc stores fee and size information needed for policy decisions.
	Desc *TxDesc

	// Parents maps to entries that this transaction spends outputs from.
	Parents map[chainhash.Hash]*Entry

	// Children maps to entries that spend this transaction's outputs.
	Children map[chainhash.Hash]*Entry

	// IsTRUC marks v3 transactions for topology validation.
	IsTRUC bool

	// AncestorCount is the number of unconfirmed ancestors, excluding the
	// entry itself. Maintained by the graph after every mutation.
	AncestorCount int

	// AncestorSize is the total virtual size of all unconfirmed ancestors,
	// excluding the entry itself.
	AncestorSize int64

	// DescendantCount is the number of unconfirmed descendants, excluding
	// the entry itself.
	DescendantCount int

	// DescendantSize is the total virtual size of all unconfirmed
	// descendants, excluding the entry itself.
	DescendantSize int64
}

// View is a read-only window onto a set of pool entries. It is implemented by
// both the live graph and the copy-on-write overlay so that validation logic
// runs identically against committed and speculative state.
//
// Entries staged in an overlay do not maintain the cached aggregate fields;
// callers validating against a View must compute closures with the traversal
// helpers in this package rather than reading Entry aggregates.
type View interface {
	// Get returns the entry for the given transaction ID.
	Get(hash chainhash.Hash) (*Entry, bool)

	// Has reports whether the transaction is present.
	Has(hash chainhash.Hash) bool

	// ParentsOf returns the in-view parents of an entry.
	ParentsOf(entry *Entry) map[chainhash.Hash]*Entry

	// ChildrenOf returns the in-view children of an entry.
	ChildrenOf(entry *Entry) map[chainhash.Hash]*Entry

	// SpendingEntry returns the entry spending the given outpoint, if any.
	SpendingEntry(outpoint wire.OutPoint) (*Entry, bool)
}
