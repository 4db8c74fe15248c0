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

package model

// UtxoEntry is an unspent transaction output: an address, a value, and
// optional datum/script-reference hashes.
type UtxoEntry struct {
	Address   Address
	Value     Value
	DatumHash []byte // nil if no datum
	ScriptRef []byte // nil if no script reference
}

// UtxoDelta is one entry in the ordered per-block delta stream emitted
// by the decode pipeline: either a spend of an existing output or the
// creation of a new one, never both.
type UtxoDelta struct {
	Ref     UtxoRef
	Spent   bool
	Created *UtxoEntry // set iff !Spent
}

// AddressDelta is a signed lovelace change to an address, published by
// the UTXO engine for the stake-delta filter to classify and forward.
type AddressDelta struct {
	Address Address
	Delta   int64
}
