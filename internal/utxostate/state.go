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

package utxostate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/errs"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/topics"
)

// appliedBlock records one block's deltas so a later rollback can
// undo them, mirroring the volatile window the chain source tags via
// model.BlockStatusVolatile/RolledBack.
type appliedBlock struct {
	number uint64
	deltas []model.UtxoDelta
	prior  map[model.UtxoRef]model.UtxoEntry // spent entries, for undo
}

// State tracks the live UTXO set and the address balance deltas each
// block produces. It fatally errors on double-spend or
// duplicate-output, per spec §4.2's invariant.
type State struct {
	store Store
	bus   *bus.Bus
	log   *slog.Logger

	mu      sync.Mutex
	undoLog []appliedBlock
}

const maxUndoDepth = 2160 // one Shelley-era stability window's worth of blocks

// addrAccumulator sums per-address deltas within one block. It is
// keyed by the address's raw encoded bytes rather than model.Address
// itself, since model.Address embeds a variable-length gouroboros
// address and is not comparable.
type addrAccumulator struct {
	order []string
	addr  map[string]model.Address
	delta map[string]int64
}

func newAddrAccumulator() *addrAccumulator {
	return &addrAccumulator{addr: make(map[string]model.Address), delta: make(map[string]int64)}
}

func (a *addrAccumulator) add(addr model.Address, delta int64) {
	if addr.Raw == nil {
		return
	}
	raw, err := addr.Raw.Bytes()
	if err != nil {
		return
	}
	key := string(raw)
	if _, ok := a.addr[key]; !ok {
		a.order = append(a.order, key)
		a.addr[key] = addr
	}
	a.delta[key] += delta
}

type addrDelta struct {
	addr  model.Address
	delta int64
}

func (a *addrAccumulator) entries() []addrDelta {
	out := make([]addrDelta, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, addrDelta{addr: a.addr[key], delta: a.delta[key]})
	}
	return out
}

// New creates a State backed by store, publishing address deltas on b.
func New(store Store, b *bus.Bus, log *slog.Logger) *State {
	return &State{store: store, bus: b, log: log.With("component", "utxostate")}
}

// Apply processes one block's UTXO deltas. Bootstrap and Immutable
// blocks apply forward unconditionally; a RolledBack block first
// unwinds every applied block back to and including its own block
// number, then applies its own deltas forward.
func (s *State) Apply(ctx context.Context, info model.BlockInfo, msg decode.UtxoDeltasMessage) error {
	if info.Status == model.BlockStatusRolledBack {
		if err := s.rollback(ctx, info.Number); err != nil {
			return err
		}
	}
	return s.applyForward(ctx, info, msg.Deltas)
}

func (s *State) applyForward(ctx context.Context, info model.BlockInfo, deltas []model.UtxoDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := appliedBlock{number: info.Number, prior: make(map[model.UtxoRef]model.UtxoEntry)}
	accum := newAddrAccumulator()

	for _, d := range deltas {
		if d.Spent {
			entry, ok, err := s.store.Get(d.Ref)
			if err != nil {
				return err
			}
			if !ok {
				return errs.Invariant(fmt.Errorf(
					"block %d: spend of unknown utxo %x#%d", info.Number, d.Ref.TxId, d.Ref.Index))
			}
			if err := s.store.Delete(d.Ref); err != nil {
				return err
			}
			applied.prior[d.Ref] = entry
			accum.add(entry.Address, -int64(entry.Value.Lovelace)) //nolint:gosec // lovelace supply fits int64
			continue
		}
		if d.Created == nil {
			continue
		}
		if _, ok, err := s.store.Get(d.Ref); err != nil {
			return err
		} else if ok {
			return errs.Invariant(fmt.Errorf(
				"block %d: duplicate output %x#%d", info.Number, d.Ref.TxId, d.Ref.Index))
		}
		if err := s.store.Put(d.Ref, *d.Created); err != nil {
			return err
		}
		accum.add(d.Created.Address, int64(d.Created.Value.Lovelace)) //nolint:gosec
	}

	applied.deltas = deltas
	s.undoLog = append(s.undoLog, applied)
	if len(s.undoLog) > maxUndoDepth {
		s.undoLog = s.undoLog[len(s.undoLog)-maxUndoDepth:]
	}

	for _, ad := range accum.entries() {
		s.bus.Publish(ctx, topics.AddressDelta, model.AddressDelta{Address: ad.addr, Delta: ad.delta})
	}
	return nil
}

// rollback unwinds every applied block with number >= target, in
// reverse application order: re-creating spent inputs and removing
// outputs the rolled-back blocks created.
func (s *State) rollback(ctx context.Context, target uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.undoLog)
	for i > 0 && s.undoLog[i-1].number >= target {
		i--
		block := s.undoLog[i]
		accum := newAddrAccumulator()
		for _, d := range block.deltas {
			if d.Spent {
				entry := block.prior[d.Ref]
				if err := s.store.Put(d.Ref, entry); err != nil {
					return err
				}
				accum.add(entry.Address, int64(entry.Value.Lovelace)) //nolint:gosec
				continue
			}
			if d.Created == nil {
				continue
			}
			if err := s.store.Delete(d.Ref); err != nil {
				return err
			}
			accum.add(d.Created.Address, -int64(d.Created.Value.Lovelace)) //nolint:gosec
		}
		for _, ad := range accum.entries() {
			s.bus.Publish(ctx, topics.AddressDelta, model.AddressDelta{Address: ad.addr, Delta: ad.delta})
		}
	}
	s.undoLog = s.undoLog[:i]
	s.log.Info("rolled back", "to_block", target)
	return nil
}
