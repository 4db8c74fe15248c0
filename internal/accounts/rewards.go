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

package accounts

import (
	"context"
	"math/big"

	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/params"
	"github.com/blinklabs-io/acropolis/internal/topics"
	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// CalculateRewardsFunc matches the teacher's own
// ledger.CalculateRewardsFunc signature, so the pipeline can swap in a
// recorded callback during replay-verification the same way
// MockLedgerState.WithCalculateRewards lets a harness stub it out.
type CalculateRewardsFunc func(lcommon.AdaPots, lcommon.RewardSnapshot, lcommon.RewardParameters) (*lcommon.RewardCalculationResult, error)

// calculateRewards defaults to gouroboros's own Praos implementation,
// the same call the teacher's MockLedgerState.CalculateRewards
// delegates to when no callback override is installed.
var calculateRewards CalculateRewardsFunc = lcommon.CalculateRewards

// EpochRewardInputs bundles what ProcessEpochBoundary needs beyond the
// Go snapshot and current pots: fee/block totals from internal/activity
// and the parameter set in effect for the epoch being rewarded.
type EpochRewardInputs struct {
	Epoch         uint64
	TotalFees     uint64
	TotalBlocks   uint64
	BlocksByPool  map[model.PoolKeyHash]uint64
	Registrations map[model.Credential]bool
	RetiredPools  map[model.PoolKeyHash]struct{}
	PoolParams    map[model.PoolKeyHash]*model.PoolRegistration
	Parameters    params.Snapshot
}

// ProcessEpochBoundary runs one epoch's reward calculation against the
// Go snapshot (two epochs behind the live delegation state, per the
// Mark/Set/Go rotation spec §4.9 describes) and applies the resulting
// pot movements and per-account reward credits.
//
// It returns the computed result so the pipeline can log or verify it
// against a recorded trace; a nil result with a nil error means there
// was no Go snapshot yet (bootstrap epochs) and no rewards were paid.
func (s *State) ProcessEpochBoundary(ctx context.Context, in EpochRewardInputs) (*lcommon.RewardCalculationResult, error) {
	s.mu.Lock()
	goSnap := s.goSnap
	pots := s.pots
	s.mu.Unlock()

	if goSnap == nil {
		s.log.Debug("no go snapshot yet, skipping reward calculation", "epoch", in.Epoch)
		return nil, nil
	}

	snapshot := buildRewardSnapshot(goSnap, in)
	adaPots := lcommon.AdaPots{
		Reserves: pots.Reserves,
		Treasury: pots.Treasury,
		Rewards:  0,
	}
	rewardParams := buildRewardParameters(in.Parameters)

	result, err := calculateRewards(adaPots, snapshot, rewardParams)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	s.applyRewardResult(ctx, result)
	return result, nil
}

// buildRewardSnapshot adapts the Go stake snapshot and this epoch's
// activity totals into the shape lcommon.CalculateRewards expects,
// mirroring the field-by-field construction the teacher's
// RewardSnapshotBuilder performs in ledger/rewards.go.
func buildRewardSnapshot(snap *model.StakeSnapshot, in EpochRewardInputs) lcommon.RewardSnapshot {
	poolStake := make(map[lcommon.PoolKeyHash]uint64, len(snap.PoolStake))
	for pool, stake := range snap.PoolStake {
		poolStake[pool] = stake
	}

	delegatorStake := make(map[lcommon.PoolKeyHash]map[lcommon.AddrKeyHash]uint64)
	for cred, pool := range snap.PoolOfAccount {
		if delegatorStake[pool] == nil {
			delegatorStake[pool] = make(map[lcommon.AddrKeyHash]uint64)
		}
		delegatorStake[pool][lcommon.AddrKeyHash(cred)] = snap.AccountStake[cred]
	}

	poolParams := make(map[lcommon.PoolKeyHash]*lcommon.PoolRegistrationCertificate, len(in.PoolParams))
	for pool, reg := range in.PoolParams {
		if reg == nil {
			continue
		}
		poolParams[pool] = &lcommon.PoolRegistrationCertificate{
			Operator:      reg.Operator,
			VrfKeyHash:    reg.VrfKeyHash,
			Pledge:        reg.Pledge,
			Cost:          reg.Cost,
			Margin:        marginToRat(reg.Margin),
			RewardAccount: reg.RewardAccount,
			PoolOwners:    reg.Owners,
			Relays:        reg.Relays,
		}
	}

	stakeRegistrations := make(map[lcommon.AddrKeyHash]bool, len(in.Registrations))
	for cred, reg := range in.Registrations {
		stakeRegistrations[lcommon.AddrKeyHash(cred)] = reg
	}

	poolBlocks := make(map[lcommon.PoolKeyHash]uint32, len(in.BlocksByPool))
	for pool, n := range in.BlocksByPool {
		poolBlocks[pool] = uint32(n)
	}

	retiredPools := make(map[lcommon.PoolKeyHash]lcommon.PoolRetirementInfo, len(in.RetiredPools))
	for pool := range in.RetiredPools {
		retiredPools[pool] = lcommon.PoolRetirementInfo{Epoch: in.Epoch}
	}

	var totalActive uint64
	for _, stake := range poolStake {
		totalActive += stake
	}

	return lcommon.RewardSnapshot{
		TotalActiveStake:   totalActive,
		PoolStake:          poolStake,
		DelegatorStake:     delegatorStake,
		PoolParams:         poolParams,
		StakeRegistrations: stakeRegistrations,
		PoolBlocks:         poolBlocks,
		TotalBlocksInEpoch: uint32(in.TotalBlocks),
		RetiredPools:       retiredPools,
	}
}

// buildRewardParameters maps the protocol-parameter snapshot's sparse
// key/value set onto lcommon.RewardParameters' well-known Shelley/Conway
// reward fields (monetary expansion rho, treasury cut tau, optimal pool
// count k, pledge influence a0). The parameter set is carried as a
// sparse map rather than a typed struct (see internal/params), so
// fields absent from a given era's genesis are left at their zero value
// and gouroboros applies its own defaults.
func buildRewardParameters(snap params.Snapshot) lcommon.RewardParameters {
	var p lcommon.RewardParameters
	if r, ok := ratParam(snap, "monetaryExpansion"); ok {
		p.MonetaryExpansion = r
	}
	if r, ok := ratParam(snap, "treasuryCut"); ok {
		p.TreasuryCut = r
	}
	if n, ok := uintParam(snap, "optimalPoolCount"); ok {
		p.OptimalPoolCount = n
	}
	if r, ok := ratParam(snap, "poolPledgeInfluence"); ok {
		p.PoolInfluence = r
	}
	return p
}

// marginToRat converts the simplified float64 margin stored on
// model.PoolRegistration back into the cbor.Rat numerator/denominator
// pair gouroboros expects, the same wrapper used across the teacher's
// own protocol-parameter literals in ledger/pparams.go and ledger/pools.go.
func marginToRat(margin float64) cbor.Rat {
	return cbor.Rat{Rat: new(big.Rat).SetFloat64(margin)}
}

func ratParam(snap params.Snapshot, key string) (*big.Rat, bool) {
	v, ok := snap.Values[key]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case *big.Rat:
		return t, true
	case float64:
		return new(big.Rat).SetFloat64(t), true
	default:
		return nil, false
	}
}

func uintParam(snap params.Snapshot, key string) (uint64, bool) {
	v, ok := snap.Values[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case uint64:
		return t, true
	case int:
		return uint64(t), true
	default:
		return 0, false
	}
}

// applyRewardResult distributes the per-account rewards the calculation
// produced, reconciles the pots (monetary expansion drawn from
// reserves, unclaimed rewards and the treasury cut going to treasury),
// and publishes the updated pots on the bus (topics.Pots).
func (s *State) applyRewardResult(ctx context.Context, result *lcommon.RewardCalculationResult) {
	rewards := make(map[model.Credential]uint64, len(result.Rewards))
	var totalPaid uint64
	for addr, amt := range result.Rewards {
		rewards[model.Credential(addr)] = amt
		totalPaid += amt
	}
	s.ApplyRewards(rewards)

	s.mu.Lock()
	s.pots.Reserves = result.NewReserves
	s.pots.Treasury = result.NewTreasury
	snapshot := s.pots
	s.mu.Unlock()

	s.bus.Publish(ctx, topics.Pots, snapshot)
	s.log.Info("applied epoch rewards", "accounts_paid", len(rewards), "total_paid", totalPaid)
}
