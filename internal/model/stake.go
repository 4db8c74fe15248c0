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

import lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

// PoolKeyHash identifies a stake pool operator.
type PoolKeyHash = lcommon.PoolKeyHash

// StakeAccount holds the delegation state for one stake credential.
type StakeAccount struct {
	Credential Credential
	Registered bool
	Pool       *PoolKeyHash // delegated-to pool, if any
	DRep       *DRepId      // delegated-to DRep, if any
	Reward     uint64       // invariant: >= 0
	Deposit    uint64
	// Stake is the UTXO-derived stake weight delegated under this
	// credential, fed by the stake-delta filter; it excludes Reward,
	// and the stake snapshots are built from Stake alone.
	Stake uint64
}

// DRepId identifies a DRep: a registered credential, or one of the two
// predefined non-registrable DReps.
type DRepId struct {
	Credential Credential
	Abstain    bool
	NoConf     bool
}

// StakeDelta is a filtered, credential-resolved stake-weight change
// forwarded by the stake-delta filter to SPO/DRep state.
type StakeDelta struct {
	Credential Credential
	Delta      int64
}

// PoolRegistration mirrors the teacher's PoolRegistrationCertificate
// shape in ledger/pools.go, trimmed to what the staking subsystem
// needs to track per spec §3.
type PoolRegistration struct {
	Operator      PoolKeyHash
	VrfKeyHash    lcommon.VrfKeyHash
	Pledge        uint64
	Cost          uint64
	Margin        float64 // numerator/denominator as a float in [0,1]
	RewardAccount lcommon.AddrKeyHash
	Owners        []lcommon.AddrKeyHash
	Relays        []lcommon.PoolRelay
	MetadataURL   string
	MetadataHash  []byte
}

// PoolRetirement records a pool scheduled to leave the registry at a
// target epoch.
type PoolRetirement struct {
	Pool        PoolKeyHash
	TargetEpoch uint64
}

// StakeSnapshot maps pools and reward addresses to total delegated
// stake, for one of the Mark/Set/Go rotation slots.
type StakeSnapshot struct {
	Epoch        uint64
	PoolStake    map[PoolKeyHash]uint64
	AccountStake map[Credential]uint64
	// PoolOfAccount records which pool each stake account currently
	// delegates to, needed for the member-reward exclusion rule (§4.9.3).
	PoolOfAccount map[Credential]PoolKeyHash
}

// NewStakeSnapshot returns an empty snapshot for the given epoch.
func NewStakeSnapshot(epoch uint64) *StakeSnapshot {
	return &StakeSnapshot{
		Epoch:         epoch,
		PoolStake:     make(map[PoolKeyHash]uint64),
		AccountStake:  make(map[Credential]uint64),
		PoolOfAccount: make(map[Credential]PoolKeyHash),
	}
}
