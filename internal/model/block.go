// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model holds the shared ledger data types passed between
// pipeline components on the bus. Nothing in this package owns mutable
// state; state lives in each component's own package.
package model

import (
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// BlockStatus tags the provenance of a block as it arrives from the
// chain source.
type BlockStatus int

const (
	// BlockStatusBootstrap is synthesised from genesis/snapshot and is
	// never rolled back.
	BlockStatusBootstrap BlockStatus = iota
	// BlockStatusImmutable is finalised, beyond the safety depth k.
	BlockStatusImmutable
	// BlockStatusVolatile is within k of the chain tip.
	BlockStatusVolatile
	// BlockStatusRolledBack marks the first block after a rewind.
	BlockStatusRolledBack
)

func (s BlockStatus) String() string {
	switch s {
	case BlockStatusBootstrap:
		return "bootstrap"
	case BlockStatusImmutable:
		return "immutable"
	case BlockStatusVolatile:
		return "volatile"
	case BlockStatusRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// BlockInfo carries the identity and provenance of a block. Every
// per-block message derived from the same block carries an identical
// BlockInfo, so downstream stages can correlate and sequence them.
type BlockInfo struct {
	Status        BlockStatus
	Slot          uint64
	Number        uint64
	Hash          lcommon.Blake2b256
	Epoch         uint64
	IsEpochStart  bool
}

// TxId identifies a transaction by its 32-byte hash.
type TxId = lcommon.Blake2b256

// UtxoRef identifies a UTXO by the transaction that created it and the
// output index within that transaction.
type UtxoRef struct {
	TxId  TxId
	Index uint32
}

// Credential identifies a keyhash or script-hash credential (28 bytes).
type Credential = lcommon.Blake2b224

// CredentialKind distinguishes a key-hash credential from a
// script-hash credential.
type CredentialKind int

const (
	CredentialKindKey CredentialKind = iota
	CredentialKindScript
)
