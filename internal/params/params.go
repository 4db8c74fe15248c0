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

// Package params tracks the current protocol parameters (spec §4.7):
// the parameter set a ratified ParameterChange action updates, and the
// point-in-time history other components consult for rewards/governance
// math that must use the parameters in effect at a past epoch.
package params

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/topics"
)

// Snapshot is the protocol parameters in effect for one epoch. Unknown
// keys are carried opaquely (model.ParameterUpdate is a sparse map),
// since the exact Conway-era field set is large and only the consumers
// that care about a given key need to type-assert it out.
type Snapshot struct {
	Epoch  uint64
	Values model.ParameterUpdate
}

// State holds the current parameters plus a history indexed by epoch
// for point-in-time queries. The history is never pruned.
type State struct {
	mu      sync.RWMutex
	current Snapshot
	history map[uint64]Snapshot

	bus *bus.Bus
	log *slog.Logger
}

// New seeds State with the genesis parameter set.
func New(genesis model.ParameterUpdate, b *bus.Bus, log *slog.Logger) *State {
	s := &State{
		current: Snapshot{Epoch: 0, Values: genesis},
		history: make(map[uint64]Snapshot),
		bus:     b,
		log:     log.With("component", "params"),
	}
	s.history[0] = s.current
	return s
}

// Current returns the parameter set in effect right now.
func (s *State) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// At returns the parameter set in effect at the given epoch, falling
// back to the most recent snapshot at or before it.
func (s *State) At(epoch uint64) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	best := s.history[0]
	for e, snap := range s.history {
		if e <= epoch && e >= best.Epoch {
			best = snap
		}
	}
	return best
}

// ApplyEnacted merges a ratified ParameterChange action's updates into
// the parameter set for the new epoch and publishes the new snapshot.
func (s *State) ApplyEnacted(ctx context.Context, epoch uint64, update model.ParameterUpdate) {
	s.mu.Lock()
	merged := make(model.ParameterUpdate, len(s.current.Values)+len(update))
	for k, v := range s.current.Values {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	snap := Snapshot{Epoch: epoch, Values: merged}
	s.current = snap
	s.history[epoch] = snap
	s.mu.Unlock()

	s.log.Info("applied ratified parameter change", "epoch", epoch)
	s.bus.Publish(ctx, topics.ProtocolParameters, snap)
}

// AdvanceEpoch carries the current parameter set forward into epoch
// when no ParameterChange action ratified, so At still resolves.
func (s *State) AdvanceEpoch(ctx context.Context, epoch uint64) {
	s.mu.Lock()
	if _, ok := s.history[epoch]; ok {
		s.mu.Unlock()
		return
	}
	snap := Snapshot{Epoch: epoch, Values: s.current.Values}
	s.current = snap
	s.history[epoch] = snap
	s.mu.Unlock()
	s.bus.Publish(ctx, topics.ProtocolParameters, snap)
}
