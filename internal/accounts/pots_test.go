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
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/model"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleCredential(b byte) model.Credential {
	var c model.Credential
	for i := range c {
		c[i] = b
	}
	return c
}

func TestRegisterDeregister(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.Pots{}, bus.New(), testLogger())
	cred := sampleCredential(0x01)

	s.Register(cred, 2_000_000)
	if got := s.Pots().Deposits; got != 2_000_000 {
		t.Fatalf("deposits after register = %d, want 2000000", got)
	}

	refund, ok := s.Deregister(cred)
	if !ok {
		t.Fatal("Deregister() returned ok=false for a registered credential")
	}
	if refund != 2_000_000 {
		t.Fatalf("refund = %d, want 2000000", refund)
	}
	if got := s.Pots().Deposits; got != 0 {
		t.Fatalf("deposits after deregister = %d, want 0", got)
	}

	if _, ok := s.Deregister(cred); ok {
		t.Fatal("Deregister() on an already-deregistered credential returned ok=true")
	}
}

func TestWithdrawOverdraft(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.Pots{}, bus.New(), testLogger())
	cred := sampleCredential(0x02)
	s.Register(cred, 0)

	if err := s.Withdraw(cred, 1); err == nil {
		t.Fatal("Withdraw() of more than the zero reward balance did not error")
	}

	s.ApplyRewards(map[model.Credential]uint64{cred: 500})
	if err := s.Withdraw(cred, 500); err != nil {
		t.Fatalf("Withdraw() of exact balance errored: %v", err)
	}
	if err := s.Withdraw(cred, 1); err == nil {
		t.Fatal("Withdraw() after draining the balance did not error")
	}
}

func TestHandleStakeDelta(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.Pots{}, bus.New(), testLogger())
	cred := sampleCredential(0x03)
	s.Register(cred, 0)

	s.HandleStakeDelta(nil, model.StakeDelta{Credential: cred, Delta: 1_000_000})
	s.HandleStakeDelta(nil, model.StakeDelta{Credential: cred, Delta: -400_000})

	s.mu.Lock()
	got := s.accounts[cred].Stake
	s.mu.Unlock()
	if got != 600_000 {
		t.Fatalf("stake after deltas = %d, want 600000", got)
	}

	// A delta larger than the current balance clamps to zero rather
	// than underflowing.
	s.HandleStakeDelta(nil, model.StakeDelta{Credential: cred, Delta: -10_000_000})
	s.mu.Lock()
	got = s.accounts[cred].Stake
	s.mu.Unlock()
	if got != 0 {
		t.Fatalf("stake after oversized negative delta = %d, want 0", got)
	}
}

func TestHandleStakeDeltaUnknownCredential(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.Pots{}, bus.New(), testLogger())
	// No panic, no entry created, for a credential never registered.
	s.HandleStakeDelta(nil, model.StakeDelta{Credential: sampleCredential(0x09), Delta: 5})
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.accounts) != 0 {
		t.Fatalf("accounts map should stay empty, got %d entries", len(s.accounts))
	}
}

func TestRotateSnapshotWindow(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.Pots{}, bus.New(), testLogger())
	cred := sampleCredential(0x04)
	pool := model.PoolKeyHash(sampleCredential(0x05))
	s.Register(cred, 0)
	s.Delegate(cred, pool)
	s.HandleStakeDelta(nil, model.StakeDelta{Credential: cred, Delta: 1_000_000})

	if s.GoSnapshot() != nil {
		t.Fatal("GoSnapshot() should be nil before the window fills")
	}

	s.RotateSnapshot(1) // mark = epoch1
	if s.GoSnapshot() != nil {
		t.Fatal("GoSnapshot() should still be nil after one rotation")
	}
	s.RotateSnapshot(2) // mark = epoch2, set = epoch1, go = nil
	if s.GoSnapshot() != nil {
		t.Fatal("GoSnapshot() should still be nil after two rotations")
	}
	s.RotateSnapshot(3) // mark = epoch3, set = epoch2, go = epoch1
	goSnap := s.GoSnapshot()
	if goSnap == nil {
		t.Fatal("GoSnapshot() should be populated after three rotations")
	}
	if goSnap.Epoch != 1 {
		t.Fatalf("go snapshot epoch = %d, want 1", goSnap.Epoch)
	}
	if got := goSnap.PoolStake[pool]; got != 1_000_000 {
		t.Fatalf("go snapshot pool stake = %d, want 1000000", got)
	}
}

func TestApplyRewardsSkipsUnknownAccounts(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.Pots{}, bus.New(), testLogger())
	known := sampleCredential(0x06)
	unknown := sampleCredential(0x07)
	s.Register(known, 0)

	s.ApplyRewards(map[model.Credential]uint64{known: 10, unknown: 20})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts[known].Reward != 10 {
		t.Fatalf("known account reward = %d, want 10", s.accounts[known].Reward)
	}
	if _, ok := s.accounts[unknown]; ok {
		t.Fatal("reward for an unregistered credential should not create an account")
	}
}
