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

import (
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/plutigo/data"
)

// AssetId identifies a native asset within a policy by its asset name.
type AssetId = lcommon.Blake2b224

// Value is a lovelace amount plus an optional multi-asset bundle,
// mirroring the teacher's Asset/MultiAsset plumbing in ledger/utxo.go.
type Value struct {
	Lovelace uint64
	Assets   map[lcommon.Blake2b224]map[string]uint64 // policy-id -> asset-name -> qty
}

// Add returns the sum of two values, merging asset maps.
func (v Value) Add(o Value) Value {
	out := Value{Lovelace: v.Lovelace + o.Lovelace}
	if len(v.Assets) == 0 && len(o.Assets) == 0 {
		return out
	}
	out.Assets = make(map[lcommon.Blake2b224]map[string]uint64)
	for policy, assets := range v.Assets {
		out.Assets[policy] = make(map[string]uint64, len(assets))
		for name, qty := range assets {
			out.Assets[policy][name] = qty
		}
	}
	for policy, assets := range o.Assets {
		if out.Assets[policy] == nil {
			out.Assets[policy] = make(map[string]uint64, len(assets))
		}
		for name, qty := range assets {
			out.Assets[policy][name] += qty
		}
	}
	return out
}

// ToPlutusData renders the value the way gouroboros-backed UTXO
// outputs do, for consumers on the script-evaluator boundary.
func (v Value) ToPlutusData() data.PlutusData {
	if len(v.Assets) == 0 {
		return data.NewInteger(bigFromUint64(v.Lovelace))
	}
	return data.NewConstr(0,
		data.NewInteger(bigFromUint64(v.Lovelace)),
	)
}

// Address is an opaque byte string carrying network-id, address-kind,
// payment credential and an optional delegation credential or pointer,
// decoded via gouroboros.
type Address struct {
	Raw     lcommon.Address
	Network uint
	Kind    AddressKind
	Payment Credential
	// Stake is set for base addresses; nil for enterprise/Byron/pointer.
	Stake *Credential
	// Pointer is set for pointer addresses.
	Pointer *PointerRef
}

// AddressKind is a fixed, closed set of address shapes across eras.
type AddressKind int

const (
	AddressKindByron AddressKind = iota
	AddressKindEnterprise
	AddressKindBase
	AddressKindPointer
)

// PointerRef identifies a stake credential indirectly via the
// certificate that registered it: (block number, tx index, cert index).
type PointerRef struct {
	BlockNumber  uint64
	TxIndex      uint32
	CertIndex    uint32
}
