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
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// CIP-0129 human-readable parts for the governance identifier bech32
// encodings this package emits: a governance action id, and a DRep id
// distinguished by credential kind.
const (
	hrpGovAction     = "gov_action"
	hrpDRepKey       = "drep"
	hrpDRepScript    = "drep_script"
	drepKeyHeader    = 0x22
	drepScriptHeader = 0x23
)

// EncodeGovActionId renders a governance action id as the CIP-0129
// bech32 string used in CLI output and explorer URLs: the 32-byte
// transaction hash followed by the one-byte proposal-procedure index,
// 5-bit regrouped under the "gov_action" human-readable part.
func EncodeGovActionId(id GovActionId) (string, error) {
	raw := append(append([]byte(nil), id.TxId.Bytes()...), id.Index)
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("converting gov action id bits: %w", err)
	}
	s, err := bech32.Encode(hrpGovAction, data)
	if err != nil {
		return "", fmt.Errorf("encoding gov action id: %w", err)
	}
	return s, nil
}

// DecodeGovActionId parses a CIP-0129 "gov_action1..." bech32 string
// back into a GovActionId.
func DecodeGovActionId(s string) (GovActionId, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return GovActionId{}, fmt.Errorf("decoding gov action id: %w", err)
	}
	if hrp != hrpGovAction {
		return GovActionId{}, fmt.Errorf("unexpected human-readable part %q, want %q", hrp, hrpGovAction)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return GovActionId{}, fmt.Errorf("converting gov action id bits: %w", err)
	}
	if len(raw) != len(TxId{})+1 {
		return GovActionId{}, fmt.Errorf("gov action id has %d bytes, want %d", len(raw), len(TxId{})+1)
	}
	var id GovActionId
	copy(id.TxId[:], raw)
	id.Index = raw[len(raw)-1]
	return id, nil
}

// EncodeDRepId renders a DRep credential as a CIP-0129 bech32 string:
// a one-byte credential-kind header (0x22 key-hash, 0x23 script-hash)
// followed by the 28-byte credential, under the "drep"/"drep_script"
// human-readable parts.
func EncodeDRepId(cred Credential, kind CredentialKind) (string, error) {
	header := byte(drepKeyHeader)
	hrp := hrpDRepKey
	if kind == CredentialKindScript {
		header = drepScriptHeader
		hrp = hrpDRepScript
	}
	raw := append([]byte{header}, cred.Bytes()...)
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("converting drep id bits: %w", err)
	}
	s, err := bech32.Encode(hrp, data)
	if err != nil {
		return "", fmt.Errorf("encoding drep id: %w", err)
	}
	return s, nil
}

// DecodeDRepId parses a CIP-0129 "drep1..."/"drep_script1..." bech32
// string back into a credential and its kind.
func DecodeDRepId(s string) (Credential, CredentialKind, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return Credential{}, 0, fmt.Errorf("decoding drep id: %w", err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Credential{}, 0, fmt.Errorf("converting drep id bits: %w", err)
	}
	if len(raw) != len(Credential{})+1 {
		return Credential{}, 0, fmt.Errorf("drep id has %d bytes, want %d", len(raw), len(Credential{})+1)
	}
	var kind CredentialKind
	switch hrp {
	case hrpDRepKey:
		kind = CredentialKindKey
	case hrpDRepScript:
		kind = CredentialKindScript
	default:
		return Credential{}, 0, fmt.Errorf("unexpected human-readable part %q", hrp)
	}
	var cred Credential
	copy(cred[:], raw[1:])
	return cred, kind, nil
}
