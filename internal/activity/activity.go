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

// Package activity accumulates per-epoch block production statistics
// (spec §4.8): fees collected and blocks minted per pool, the inputs
// the reward calculation's monetary-expansion and leader-reward steps
// need.
package activity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/topics"
)

// EpochActivity is the accumulated per-epoch totals published at an
// epoch boundary, consumed by internal/accounts.
type EpochActivity struct {
	Epoch      uint64
	TotalFees  uint64
	BlocksByPool map[model.PoolKeyHash]uint64
	TotalBlocks uint64
}

// State accumulates the epoch currently in progress.
type State struct {
	mu  sync.Mutex
	cur EpochActivity

	bus *bus.Bus
	log *slog.Logger
}

// New creates an empty accumulator for the given starting epoch.
func New(epoch uint64, b *bus.Bus, log *slog.Logger) *State {
	return &State{
		cur: EpochActivity{Epoch: epoch, BlocksByPool: make(map[model.PoolKeyHash]uint64)},
		bus: b,
		log: log.With("component", "activity"),
	}
}

// HandleFees adds one block's collected fees to the running total.
func (s *State) HandleFees(_ context.Context, msg decode.FeesMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.TotalFees += msg.Fees
	s.cur.TotalBlocks++
}

// RecordBlockProducer attributes one minted block to its issuing pool,
// resolved by the caller from the block header's issuer VRF/operational
// certificate (outside this package's scope — it only tallies).
func (s *State) RecordBlockProducer(pool model.PoolKeyHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.BlocksByPool[pool]++
}

// EpochBoundary publishes the completed epoch's totals and resets the
// accumulator for the epoch about to start.
func (s *State) EpochBoundary(ctx context.Context, nextEpoch uint64) EpochActivity {
	s.mu.Lock()
	done := s.cur
	s.cur = EpochActivity{Epoch: nextEpoch, BlocksByPool: make(map[model.PoolKeyHash]uint64)}
	s.mu.Unlock()

	s.bus.Publish(ctx, topics.EpochActivity, done)
	s.log.Info("epoch activity", "epoch", done.Epoch, "blocks", done.TotalBlocks, "fees", done.TotalFees)
	return done
}
