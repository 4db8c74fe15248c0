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
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/errs"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRef(txByte byte, index uint32) model.UtxoRef {
	var id model.TxId
	id[0] = txByte
	return model.UtxoRef{TxId: id, Index: index}
}

func TestApplyCreatesOutput(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := NewMemoryStore()
	s := New(store, bus.New(), testLogger())
	ref := sampleRef(0x01, 0)
	entry := model.UtxoEntry{Value: model.Value{Lovelace: 1_000}}

	err := s.Apply(context.Background(), model.BlockInfo{Number: 1}, decode.UtxoDeltasMessage{
		Info:   model.BlockInfo{Number: 1},
		Deltas: []model.UtxoDelta{{Ref: ref, Created: &entry}},
	})
	require.NoError(t, err)

	got, ok, err := store.Get(ref)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry, got)
}

func TestApplySpendRemovesOutput(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := NewMemoryStore()
	s := New(store, bus.New(), testLogger())
	ref := sampleRef(0x02, 0)
	entry := model.UtxoEntry{Value: model.Value{Lovelace: 500}}
	require.NoError(t, store.Put(ref, entry))

	err := s.Apply(context.Background(), model.BlockInfo{Number: 2}, decode.UtxoDeltasMessage{
		Info:   model.BlockInfo{Number: 2},
		Deltas: []model.UtxoDelta{{Ref: ref, Spent: true}},
	})
	require.NoError(t, err)

	_, ok, err := store.Get(ref)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestApplyDoubleSpendIsInvariantViolation(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := NewMemoryStore()
	s := New(store, bus.New(), testLogger())
	ref := sampleRef(0x03, 0)

	err := s.Apply(context.Background(), model.BlockInfo{Number: 1}, decode.UtxoDeltasMessage{
		Deltas: []model.UtxoDelta{{Ref: ref, Spent: true}},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrInvariant)
}

func TestApplyDuplicateOutputIsInvariantViolation(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := NewMemoryStore()
	s := New(store, bus.New(), testLogger())
	ref := sampleRef(0x04, 0)
	entry := model.UtxoEntry{Value: model.Value{Lovelace: 1}}
	require.NoError(t, store.Put(ref, entry))

	err := s.Apply(context.Background(), model.BlockInfo{Number: 1}, decode.UtxoDeltasMessage{
		Deltas: []model.UtxoDelta{{Ref: ref, Created: &entry}},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrInvariant)
}

func TestRollbackUndoesAppliedBlock(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := NewMemoryStore()
	s := New(store, bus.New(), testLogger())
	ref := sampleRef(0x05, 0)
	entry := model.UtxoEntry{Value: model.Value{Lovelace: 777}}

	require.NoError(t, s.Apply(context.Background(), model.BlockInfo{Number: 10}, decode.UtxoDeltasMessage{
		Info:   model.BlockInfo{Number: 10},
		Deltas: []model.UtxoDelta{{Ref: ref, Created: &entry}},
	}))

	require.NoError(t, s.Apply(context.Background(), model.BlockInfo{Number: 10, Status: model.BlockStatusRolledBack}, decode.UtxoDeltasMessage{
		Info: model.BlockInfo{Number: 10, Status: model.BlockStatusRolledBack},
	}))

	_, ok, err := store.Get(ref)
	require.NoError(t, err)
	require.False(t, ok, "rollback should remove the output the rolled-back block created")
}
