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

// Package drepstate tracks the DRep registry (spec §4.5): registration,
// deregistration, activity-based expiry, and the dormancy counter that
// extends every DRep's expiry while governance is inactive.
package drepstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/topics"
)

// drepRecord is one registered DRep's registry entry.
type drepRecord struct {
	drep       model.DRep
	delegators map[model.Credential]struct{}
}

// State is the live DRep registry. ActivityEpochs is the protocol
// parameter drep_activity (expiry lifetime in epochs); Dormant counts
// consecutive epochs with no governance activity, and that count is
// subtracted from the expiry epoch computed when a DRep is touched by
// activity (see expiryFor).
type State struct {
	mu              sync.Mutex
	dreps           map[model.Credential]*drepRecord
	activityEpochs  uint64
	dormantEpochs   uint64
	protocolVersion uint64
	bus             *bus.Bus
	log             *slog.Logger
}

// New creates an empty DRep registry publishing onto b. activityEpochs
// is drep_activity's initial value; protocolVersion gates the
// registration-time dormancy subtraction (spec §4.5: only from version
// 10 onward, not during the version-9 bootstrap phase). Params updates
// call SetActivityEpochs/SetProtocolVersion.
func New(activityEpochs, protocolVersion uint64, b *bus.Bus, log *slog.Logger) *State {
	return &State{
		dreps:           make(map[model.Credential]*drepRecord),
		activityEpochs:  activityEpochs,
		protocolVersion: protocolVersion,
		bus:             b,
		log:             log.With("component", "drepstate"),
	}
}

// SetActivityEpochs updates drep_activity after a parameter-change
// ratification.
func (s *State) SetActivityEpochs(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activityEpochs = n
}

// SetProtocolVersion updates the protocol major version, gating the
// registration-time dormancy subtraction (spec §4.5).
func (s *State) SetProtocolVersion(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolVersion = n
}

const minProtocolVersionForRegistrationDormancy = 10

// expiryFor computes currentEpoch + activityEpochs, less the dormancy
// credit when it applies (always for update/vote; for registration
// only once the chain has moved past the version-9 bootstrap phase).
func (s *State) expiryFor(currentEpoch uint64, subtractDormancy bool) uint64 {
	base := currentEpoch + s.activityEpochs
	if !subtractDormancy {
		return base
	}
	if base < s.dormantEpochs {
		return 0
	}
	return base - s.dormantEpochs
}

// HandleCertificates applies one block's DRep-related certificates.
func (s *State) HandleCertificates(_ context.Context, currentEpoch uint64, msg decode.CertificatesMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range msg.Certs {
		switch c.Kind {
		case decode.CertDRepRegistration:
			if c.DRep == nil {
				continue
			}
			drep := *c.DRep
			subtractDormancy := s.protocolVersion >= minProtocolVersionForRegistrationDormancy
			drep.Expiry = s.expiryFor(currentEpoch, subtractDormancy)
			s.dreps[c.Credential] = &drepRecord{drep: drep, delegators: make(map[model.Credential]struct{})}
		case decode.CertDRepUpdate:
			if rec, ok := s.dreps[c.Credential]; ok {
				rec.drep.Expiry = s.expiryFor(currentEpoch, true)
				if c.DRep != nil {
					rec.drep.AnchorURL = c.DRep.AnchorURL
					rec.drep.AnchorHash = c.DRep.AnchorHash
				}
			}
		case decode.CertDRepDeregistration:
			delete(s.dreps, c.Credential)
		case decode.CertStakeDelegation:
			if c.DelegatedDRep == nil || c.DelegatedDRep.Credential == (model.Credential{}) {
				continue
			}
			if rec, ok := s.dreps[c.DelegatedDRep.Credential]; ok {
				rec.delegators[c.Credential] = struct{}{}
			}
		}
	}
}

// RecordActivity refreshes a voting DRep's expiry, per spec §4.5's
// rule that any vote resets the inactivity clock.
func (s *State) RecordActivity(cred model.Credential, currentEpoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.dreps[cred]; ok {
		rec.drep.Expiry = s.expiryFor(currentEpoch, true)
	}
}

// DelegatedStake sums, per currently registered DRep, the account stake
// of every credential delegating to it as of snap (spec §4.6's
// ratification threshold needs each DRep's voting weight).
func (s *State) DelegatedStake(snap *model.StakeSnapshot) map[model.Credential]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.Credential]uint64, len(s.dreps))
	for cred, rec := range s.dreps {
		var total uint64
		for delegator := range rec.delegators {
			total += snap.AccountStake[delegator]
		}
		out[cred] = total
	}
	return out
}

// EpochBoundary advances the dormancy counter (incrementing it when
// governanceWasActive is false, resetting it to zero otherwise),
// expires DReps whose expiry epoch has passed, and
// publishes the resulting distribution.
func (s *State) EpochBoundary(ctx context.Context, epoch uint64, governanceWasActive bool) []model.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	if governanceWasActive {
		s.dormantEpochs = 0
	} else {
		s.dormantEpochs++
	}

	var expired []model.Credential
	for cred, rec := range s.dreps {
		if rec.drep.Expiry < epoch {
			expired = append(expired, cred)
			delete(s.dreps, cred)
		}
	}

	dist := make(map[model.Credential]model.DRep, len(s.dreps))
	for cred, rec := range s.dreps {
		dist[cred] = rec.drep
	}
	s.bus.Publish(ctx, topics.DrepDistribution, dist)

	if len(expired) > 0 {
		s.log.Info("expired dreps", "epoch", epoch, "count", len(expired))
	}
	return expired
}
