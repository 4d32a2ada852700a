// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package mempool implements the unconfirmed transaction pool's admission and
replacement policy engine.

The engine decides which candidate transactions enter the pool, which resident
transactions they evict, and how packages of related transactions are
evaluated together. It enforces the TRUC (v3) topology rules, configurable
ancestor/descendant limits, and the replace-by-fee rules, and exposes both a
mutating submission path and a non-mutating evaluation path that are
guaranteed to agree.

Consensus validity is out of scope: transactions handed to the engine are
assumed script-valid, and input values are resolved through the caller's
UtxoSource. The engine keeps no orphans; a transaction whose inputs cannot be
resolved is rejected outright.
*/
package mempool
