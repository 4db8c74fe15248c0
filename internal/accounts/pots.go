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

// Package accounts implements the pots/rewards state machine (spec
// §4.9): reserves/treasury/deposits/donations tracking, per-epoch
// reward calculation delegated to gouroboros's own Praos implementation
// (lcommon.CalculateRewards, the same call the teacher's
// MockLedgerState.CalculateRewards makes), and the Mark/Set/Go stake
// snapshot rotation the reward calculation is computed against.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/errs"
	"github.com/blinklabs-io/acropolis/internal/model"
)

// State tracks the four pots and every stake account's accrued reward
// balance and deposit.
type State struct {
	mu       sync.Mutex
	pots     model.Pots
	accounts map[model.Credential]*model.StakeAccount

	// mark/set/go: mark is the snapshot taken this epoch (current
	// delegation state), set is last epoch's, go is the snapshot
	// rewards are actually calculated against (two epochs old), per
	// spec §4.9's rotation.
	mark, set, goSnap *model.StakeSnapshot

	bus *bus.Bus
	log *slog.Logger
}

// New creates an accounts state machine seeded with the genesis pots.
func New(genesis model.Pots, b *bus.Bus, log *slog.Logger) *State {
	return &State{
		pots:     genesis,
		accounts: make(map[model.Credential]*model.StakeAccount),
		bus:      b,
		log:      log.With("component", "accounts"),
	}
}

// Pots returns the current pot balances.
func (s *State) Pots() model.Pots {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pots
}

// Register marks a stake credential as registered, collecting its
// deposit from the submitting transaction's balance (tracked upstream
// by internal/utxostate; here we only record the deposit liability).
func (s *State) Register(cred model.Credential, deposit uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[cred]
	if !ok {
		acct = &model.StakeAccount{Credential: cred}
		s.accounts[cred] = acct
	}
	acct.Registered = true
	acct.Deposit = deposit
	s.pots.Deposits += deposit
}

// Deregister releases a stake credential's deposit back to its return
// address (the caller applies the refund to the UTXO set or a pending
// withdrawal; this just clears the bookkeeping and pot liability).
func (s *State) Deregister(cred model.Credential) (refund uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, exists := s.accounts[cred]
	if !exists || !acct.Registered {
		return 0, false
	}
	refund = acct.Deposit
	acct.Registered = false
	acct.Deposit = 0
	s.pots.Deposits -= refund
	return refund, true
}

// Delegate records a stake credential's pool delegation.
func (s *State) Delegate(cred model.Credential, pool model.PoolKeyHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[cred]; ok {
		acct.Pool = &pool
	}
}

// HandleStakeDelta applies a filtered, credential-resolved stake-weight
// change published by internal/stakefilter onto the owning account's
// UTXO-derived stake. Deltas for a credential with no account yet (a
// base address whose stake key was never explicitly registered) are
// dropped: unregistered stake earns no rewards and isn't counted.
func (s *State) HandleStakeDelta(_ context.Context, d model.StakeDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[d.Credential]
	if !ok {
		return
	}
	if d.Delta < 0 && uint64(-d.Delta) > acct.Stake {
		acct.Stake = 0
		return
	}
	acct.Stake = uint64(int64(acct.Stake) + d.Delta)
}

// Withdraw debits a reward account's balance by amt, failing with an
// invariant error if the balance would go negative (spec §7).
func (s *State) Withdraw(cred model.Credential, amt uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[cred]
	if !ok || acct.Reward < amt {
		return errs.Invariant(errWithdrawOverdraft(cred, amt))
	}
	acct.Reward -= amt
	return nil
}

func errWithdrawOverdraft(cred model.Credential, amt uint64) error {
	return fmt.Errorf("withdrawal of %d exceeds reward balance for %x", amt, cred)
}

// RotateSnapshot advances the Mark/Set/Go window at an epoch boundary,
// retiring the oldest (Go) snapshot and taking a new Mark from the
// live delegation state.
func (s *State) RotateSnapshot(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goSnap = s.set
	s.set = s.mark
	s.mark = s.snapshotLocked(epoch)
}

func (s *State) snapshotLocked(epoch uint64) *model.StakeSnapshot {
	snap := model.NewStakeSnapshot(epoch)
	for cred, acct := range s.accounts {
		if !acct.Registered {
			continue
		}
		snap.AccountStake[cred] = acct.Stake
		if acct.Pool != nil {
			snap.PoolOfAccount[cred] = *acct.Pool
			snap.PoolStake[*acct.Pool] += acct.Stake
		}
	}
	return snap
}

// GoSnapshot returns the snapshot rewards are currently computed
// against (two epochs behind Mark), or nil before the window fills.
func (s *State) GoSnapshot() *model.StakeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goSnap
}

// MarkSnapshot returns the snapshot taken at the most recent epoch
// boundary (the current delegation state), or nil before the first
// rotation. Governance ratification weighs votes against this snapshot,
// not Go, since vote stake is current-epoch, not two epochs behind.
func (s *State) MarkSnapshot() *model.StakeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mark
}

// ApplyRewards credits member and leader rewards onto stake accounts
// and moves the corresponding amount from the rewards pot (conceptually
// held in transit via Reserves/Treasury already adjusted by the
// caller), per the aggregation rule of Errata 17.4: a delegator who is
// also the pool's reward-account holder receives leader and member
// rewards summed into one payment.
func (s *State) ApplyRewards(rewards map[model.Credential]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cred, amt := range rewards {
		acct, ok := s.accounts[cred]
		if !ok || !acct.Registered {
			// A reward addressed to an unknown or since-deregistered
			// account is forfeit: it is not credited here.
			continue
		}
		acct.Reward += amt
	}
}
