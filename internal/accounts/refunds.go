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

import "github.com/blinklabs-io/acropolis/internal/model"

// Refund is one deposit returned to its owner at an epoch boundary,
// keyed by the credential whose reward account balance the payout went
// to (deposit refunds land as a reward-account credit, not a direct
// UTXO output). The Refund* methods apply the credit themselves.
type Refund struct {
	Credential model.Credential
	Amount     uint64
	Reason     string // "pool-retired", "drep-expired", "proposal-expired"
}

// RefundPoolDeposits returns the pool deposit to each retired pool's
// reward account and clears its pot liability. The pipeline calls this
// once per epoch boundary with the retired-pool list
// internal/spostate.EpochBoundary returned.
func (s *State) RefundPoolDeposits(pools map[model.PoolKeyHash]model.PoolRegistration, retired []model.PoolKeyHash) []Refund {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Refund
	for _, pool := range retired {
		reg, ok := pools[pool]
		if !ok {
			continue
		}
		cred := model.Credential(reg.RewardAccount)
		const poolDeposit = 500_000_000 // lovelace; key_deposit-class constant, protocol-parameterized in practice
		if s.pots.Deposits < poolDeposit {
			s.log.Warn("pool deposit refund exceeds tracked deposit pot", "pool", pool)
			continue
		}
		s.pots.Deposits -= poolDeposit
		out = append(out, Refund{Credential: cred, Amount: poolDeposit, Reason: "pool-retired"})
		if acct, ok := s.accounts[cred]; ok {
			acct.Reward += poolDeposit
		}
	}
	return out
}

// RefundDRepDeposits returns each expired DRep's deposit to its own
// credential's reward balance, consuming internal/drepstate.EpochBoundary's
// expired-DRep list.
func (s *State) RefundDRepDeposits(expired []model.Credential) []Refund {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Refund
	for _, cred := range expired {
		acct, ok := s.accounts[cred]
		if !ok || acct.Deposit == 0 {
			continue
		}
		amt := acct.Deposit
		acct.Deposit = 0
		acct.Reward += amt
		s.pots.Deposits -= amt
		out = append(out, Refund{Credential: cred, Amount: amt, Reason: "drep-expired"})
	}
	return out
}

// ExpireProposalDeposits returns an expired governance action's deposit
// to its proposer's reward account, consuming
// internal/governance.RatificationResult.Expired.
func (s *State) ExpireProposalDeposits(actions []model.GovAction) []Refund {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Refund
	for _, a := range actions {
		if a.Deposit == 0 {
			continue
		}
		cred := a.ReturnAddress
		if s.pots.Deposits >= a.Deposit {
			s.pots.Deposits -= a.Deposit
		}
		if acct, ok := s.accounts[cred]; ok {
			acct.Reward += a.Deposit
		}
		out = append(out, Refund{Credential: cred, Amount: a.Deposit, Reason: "proposal-expired"})
	}
	return out
}
