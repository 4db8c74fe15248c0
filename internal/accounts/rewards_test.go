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
	"testing"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/params"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"go.uber.org/goleak"
)

func TestProcessEpochBoundaryNoGoSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.Pots{}, bus.New(), testLogger())

	result, err := s.ProcessEpochBoundary(context.Background(), EpochRewardInputs{Epoch: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatal("expected a nil result before the mark/set/go window fills")
	}
}

func TestProcessEpochBoundaryAppliesResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	orig := calculateRewards
	defer func() { calculateRewards = orig }()

	cred := sampleCredential(0x20)
	calculateRewards = func(pots lcommon.AdaPots, snap lcommon.RewardSnapshot, p lcommon.RewardParameters) (*lcommon.RewardCalculationResult, error) {
		return &lcommon.RewardCalculationResult{
			Rewards:     map[lcommon.AddrKeyHash]uint64{lcommon.AddrKeyHash(cred): 1_000},
			NewReserves: pots.Reserves - 1_000,
			NewTreasury: pots.Treasury + 200,
		}, nil
	}

	s := New(model.Pots{Reserves: 1_000_000, Treasury: 0}, bus.New(), testLogger())
	s.Register(cred, 0)
	s.Delegate(cred, model.PoolKeyHash(sampleCredential(0x21)))
	s.HandleStakeDelta(nil, model.StakeDelta{Credential: cred, Delta: 500})

	// Fill the mark/set/go window so a go snapshot exists.
	s.RotateSnapshot(1)
	s.RotateSnapshot(2)
	s.RotateSnapshot(3)

	result, err := s.ProcessEpochBoundary(context.Background(), EpochRewardInputs{
		Epoch:      3,
		Parameters: params.Snapshot{Values: model.ParameterUpdate{}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a non-nil result once the go snapshot is populated")
	}

	if got := s.Pots().Reserves; got != 999_000 {
		t.Fatalf("reserves after reward application = %d, want 999000", got)
	}
	if got := s.Pots().Treasury; got != 200 {
		t.Fatalf("treasury after reward application = %d, want 200", got)
	}

	s.mu.Lock()
	reward := s.accounts[cred].Reward
	s.mu.Unlock()
	if reward != 1_000 {
		t.Fatalf("credited reward = %d, want 1000", reward)
	}
}

func TestBuildRewardParametersBestEffortFields(t *testing.T) {
	snap := params.Snapshot{Values: model.ParameterUpdate{
		"monetaryExpansion":  0.003,
		"treasuryCut":        0.2,
		"optimalPoolCount":   uint64(500),
		"poolPledgeInfluence": 0.3,
		"unrelatedKey":       "ignored",
	}}
	p := buildRewardParameters(snap)
	if p.OptimalPoolCount != 500 {
		t.Fatalf("OptimalPoolCount = %d, want 500", p.OptimalPoolCount)
	}
	if p.MonetaryExpansion == nil {
		t.Fatal("MonetaryExpansion should be set from a float64 parameter value")
	}
	if p.TreasuryCut == nil {
		t.Fatal("TreasuryCut should be set from a float64 parameter value")
	}
	if p.PoolInfluence == nil {
		t.Fatal("PoolInfluence should be set from a float64 parameter value")
	}
}

func TestMarginToRat(t *testing.T) {
	r := marginToRat(0.05)
	if r.Rat == nil {
		t.Fatal("marginToRat() returned a nil *big.Rat")
	}
	f, _ := r.Rat.Float64()
	if f < 0.049 || f > 0.051 {
		t.Fatalf("marginToRat(0.05) = %v, want ~0.05", f)
	}
}
