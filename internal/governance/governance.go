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

// Package governance implements CIP-1694 proposal lifecycle tracking
// (spec §4.6): proposal ingestion, vote-overwrite semantics, and
// epoch-boundary ratification into an EnactState. This topic is
// serialized to a single subscriber per spec §6, since ratification
// order within an epoch boundary must be deterministic.
package governance

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/topics"
)

// proposalRecord tracks one live proposal's votes alongside the action
// itself.
type proposalRecord struct {
	action model.GovAction
}

// State is the live set of un-ratified governance proposals.
type State struct {
	mu          sync.Mutex
	proposals   map[string]*proposalRecord // hex(txid)#index -> record
	enactState  model.EnactState
	govLifetime uint64 // gov_action_lifetime, in epochs
	activeLast  bool   // whether any vote was cast in the epoch just ended
	// committee is the current constitutional committee, keyed the same
	// way GovAction.Votes is (string(cred.Bytes())), mapping to each
	// member's expiry epoch.
	committee map[string]uint64

	bus *bus.Bus
	log *slog.Logger
}

// New creates an empty governance tracker. govLifetime is the initial
// gov_action_lifetime protocol parameter.
func New(govLifetime uint64, b *bus.Bus, log *slog.Logger) *State {
	return &State{
		proposals:   make(map[string]*proposalRecord),
		govLifetime: govLifetime,
		committee:   make(map[string]uint64),
		bus:         b,
		log:         log.With("component", "governance"),
	}
}

// SetLifetime updates gov_action_lifetime after a parameter-change
// ratification.
func (s *State) SetLifetime(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.govLifetime = n
}

// HandleProcedures ingests one block's governance procedures:
// proposal submissions are added to the live set; votes overwrite any
// prior vote by the same (role, credential) on the named action.
func (s *State) HandleProcedures(_ context.Context, msg decode.GovernanceMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, proc := range msg.Procedures {
		switch {
		case proc.Proposal != nil:
			key := proc.Proposal.Id.String()
			s.proposals[key] = &proposalRecord{action: *proc.Proposal}
		case proc.Vote != nil:
			key := proc.Vote.Action.String()
			if rec, ok := s.proposals[key]; ok {
				rec.action.RecordVote(*proc.Vote)
				s.activeLast = true
			}
		}
	}
}

// RatificationResult is the outcome of one epoch boundary's
// ratification pass, consumed by internal/accounts for deposit refunds
// and by internal/params for parameter application.
type RatificationResult struct {
	Enacted []model.GovAction
	Expired []model.GovAction
}

// EpochBoundary ratifies every proposal ratify judges met, expires
// every remaining proposal past its lifetime, and publishes the
// resulting EnactState. Threshold evaluation itself (SPO/DRep/committee
// weighted majority per action kind) lives with the caller, which has
// the stake distributions this package does not track; EpochBoundary
// takes the pre-computed ratify decision as a function so the caller
// can inspect the action's votes and kind to decide.
func (s *State) EpochBoundary(ctx context.Context, epoch uint64, ratify func(model.GovAction) bool) RatificationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result RatificationResult
	for key, rec := range s.proposals {
		switch {
		case ratify(rec.action):
			result.Enacted = append(result.Enacted, rec.action)
			s.recordEnactment(rec.action)
			delete(s.proposals, key)
		case !rec.action.IsActive(epoch, s.govLifetime):
			result.Expired = append(result.Expired, rec.action)
			delete(s.proposals, key)
		}
	}

	s.enactState.Epoch = epoch
	s.bus.Publish(ctx, topics.EnactState, s.enactState)

	// Dormancy "was active" (spec §4.5/§8.d) means a proposal was active
	// during the concluding epoch, independent of whether it received a
	// vote: any action ratified this boundary was active, and so is
	// every proposal still on the books afterwards (the loop above only
	// ever removes a proposal once it either ratifies or goes inactive).
	wasActive := s.activeLast || len(result.Enacted) > 0 || len(s.proposals) > 0
	s.activeLast = false

	if !wasActive {
		s.log.Debug("no governance activity this epoch", "epoch", epoch)
	}
	return result
}

// WasActiveLastEpoch reports whether governance was active going into
// the boundary at epoch: a vote was cast since the previous boundary,
// or a proposal remains active at epoch (spec §4.5/§8.d ties the
// dormancy counter to proposal activity, not to votes alone). The
// pipeline calls this before EpochBoundary runs so drepstate's own
// boundary, which must run first, sees the same signal EpochBoundary
// computes internally for the same epoch.
func (s *State) WasActiveLastEpoch(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLast || s.anyProposalActive(epoch)
}

func (s *State) anyProposalActive(epoch uint64) bool {
	for _, rec := range s.proposals {
		if rec.action.IsActive(epoch, s.govLifetime) {
			return true
		}
	}
	return false
}

func (s *State) recordEnactment(a model.GovAction) {
	id := a.Id
	switch a.Kind {
	case model.GovActionParameterChange:
		s.enactState.ProtocolParameters = &id
	case model.GovActionHardFork:
		s.enactState.HardFork = &id
	case model.GovActionCommitteeUpdate:
		s.enactState.Committee = &id
		for cred, expiry := range a.NewCommitteeMembers {
			s.committee[string(cred.Bytes())] = expiry
		}
		for _, cred := range a.NewCommitteeRemoved {
			delete(s.committee, string(cred.Bytes()))
		}
	case model.GovActionNoConfidence:
		// A successful motion of no confidence dissolves the sitting
		// committee outright (CIP-1694); the next CommitteeUpdate starts
		// from empty rather than the removed membership.
		s.enactState.Committee = &id
		s.committee = make(map[string]uint64)
	case model.GovActionNewConstitution:
		s.enactState.Constitution = &id
	}
}

// CommitteeMembers returns the current constitutional committee, keyed
// the same way GovAction.Votes is (string(cred.Bytes())), mapped to
// each member's expiry epoch. Ratification threshold evaluation uses
// this to tally committee votes.
func (s *State) CommitteeMembers() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.committee))
	for k, v := range s.committee {
		out[k] = v
	}
	return out
}
