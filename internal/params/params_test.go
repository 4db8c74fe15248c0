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

package params

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyEnactedMergesAndHistorizes(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.ParameterUpdate{"minFeeA": uint64(44)}, bus.New(), testLogger())

	s.ApplyEnacted(context.Background(), 5, model.ParameterUpdate{"minFeeB": uint64(155)})

	cur := s.Current()
	require.Equal(t, uint64(5), cur.Epoch)
	require.Equal(t, uint64(44), cur.Values["minFeeA"])
	require.Equal(t, uint64(155), cur.Values["minFeeB"])
}

func TestAdvanceEpochCarriesForwardWithoutDuplicating(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.ParameterUpdate{"minFeeA": uint64(44)}, bus.New(), testLogger())

	s.AdvanceEpoch(context.Background(), 1)
	s.AdvanceEpoch(context.Background(), 1) // second call for the same epoch is a no-op

	snap := s.At(1)
	require.Equal(t, uint64(44), snap.Values["minFeeA"])
}

func TestAtFallsBackToMostRecentPriorSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(model.ParameterUpdate{"minFeeA": uint64(44)}, bus.New(), testLogger())
	s.ApplyEnacted(context.Background(), 3, model.ParameterUpdate{"minFeeA": uint64(50)})

	snap := s.At(7) // no snapshot at 7: falls back to the epoch-3 one
	require.Equal(t, uint64(3), snap.Epoch)
	require.Equal(t, uint64(50), snap.Values["minFeeA"])

	snap = s.At(0) // before any change: genesis snapshot
	require.Equal(t, uint64(0), snap.Epoch)
	require.Equal(t, uint64(44), snap.Values["minFeeA"])
}
