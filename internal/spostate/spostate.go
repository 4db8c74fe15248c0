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

// Package spostate tracks the stake pool registry (spec §4.4):
// registrations, scheduled retirements, delegated stake, and the
// per-epoch distribution SPO rewards are computed against.
package spostate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/topics"
)

// poolRecord is the registry entry for one stake pool.
type poolRecord struct {
	reg            model.PoolRegistration
	retiringAt     *uint64
	delegators     map[model.Credential]struct{}
}

// State is the live SPO registry. Delegated stake totals are
// maintained separately in the Mark/Set/Go snapshot (model.StakeSnapshot);
// State itself only tracks registry membership and delegation
// assignment; DelegatedStake sums stake from a snapshot passed in.
type State struct {
	mu    sync.Mutex
	pools map[model.PoolKeyHash]*poolRecord
	bus   *bus.Bus
	log   *slog.Logger
}

// New creates an empty SPO registry publishing onto b.
func New(b *bus.Bus, log *slog.Logger) *State {
	return &State{pools: make(map[model.PoolKeyHash]*poolRecord), bus: b, log: log.With("component", "spostate")}
}

// HandleCertificates applies one block's pool-related certificates:
// registration (insert or update in place, per spec §4.4's re-registration
// rule), retirement scheduling, and delegation assignment.
func (s *State) HandleCertificates(_ context.Context, msg decode.CertificatesMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range msg.Certs {
		switch c.Kind {
		case decode.CertPoolRegistration:
			if c.Pool == nil {
				continue
			}
			rec, ok := s.pools[c.Pool.Operator]
			if !ok {
				rec = &poolRecord{delegators: make(map[model.Credential]struct{})}
				s.pools[c.Pool.Operator] = rec
			}
			rec.reg = *c.Pool
			rec.retiringAt = nil // re-registration cancels a pending retirement
		case decode.CertPoolRetirement:
			if c.Retirement == nil {
				continue
			}
			if rec, ok := s.pools[c.Retirement.Pool]; ok {
				epoch := c.Retirement.TargetEpoch
				rec.retiringAt = &epoch
			}
		case decode.CertStakeDelegation:
			if c.DelegatedPool == nil {
				continue
			}
			if rec, ok := s.pools[*c.DelegatedPool]; ok {
				rec.delegators[c.Credential] = struct{}{}
			}
		}
	}
}

// EpochBoundary retires every pool whose scheduled retirement epoch has
// arrived, publishes the resulting SPO distribution for the
// about-to-start epoch, and returns the set of operators retired so the
// accounts component can refund their deposits.
func (s *State) EpochBoundary(ctx context.Context, epoch uint64) []model.PoolKeyHash {
	s.mu.Lock()
	defer s.mu.Unlock()

	var retired []model.PoolKeyHash
	for operator, rec := range s.pools {
		if rec.retiringAt != nil && *rec.retiringAt <= epoch {
			retired = append(retired, operator)
			delete(s.pools, operator)
		}
	}

	dist := make(map[model.PoolKeyHash]model.PoolRegistration, len(s.pools))
	for operator, rec := range s.pools {
		dist[operator] = rec.reg
	}
	s.bus.Publish(ctx, topics.SpoDistribution, dist)

	if len(retired) > 0 {
		s.log.Info("retired pools", "epoch", epoch, "count", len(retired))
	}
	return retired
}

// CurrentRegistrations returns a snapshot of every currently-registered
// pool's registration certificate, for internal/accounts's reward
// calculation (which needs pledge, cost, margin, and reward account per
// pool) and for deposit refunds keyed by reward account.
func (s *State) CurrentRegistrations() map[model.PoolKeyHash]model.PoolRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.PoolKeyHash]model.PoolRegistration, len(s.pools))
	for operator, rec := range s.pools {
		out[operator] = rec.reg
	}
	return out
}

// DelegatedStake sums, per currently registered pool, the account
// stake of every credential delegating to it as of snap (spec §4.6's
// ratification threshold needs each SPO's voting weight).
func (s *State) DelegatedStake(snap *model.StakeSnapshot) map[model.PoolKeyHash]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.PoolKeyHash]uint64, len(s.pools))
	for operator, rec := range s.pools {
		var total uint64
		for delegator := range rec.delegators {
			total += snap.AccountStake[delegator]
		}
		out[operator] = total
	}
	return out
}

// DelegatedPool reports which pool, if any, a stake credential is
// currently delegated to.
func (s *State) DelegatedPool(cred model.Credential) (model.PoolKeyHash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for operator, rec := range s.pools {
		if _, ok := rec.delegators[cred]; ok {
			return operator, true
		}
	}
	return model.PoolKeyHash{}, false
}
