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

package governance

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleAction(index uint8, kind model.GovActionKind, submission uint64) model.GovAction {
	return model.GovAction{
		Id:              model.GovActionId{Index: index},
		Kind:            kind,
		SubmissionEpoch: submission,
		Deposit:         100,
	}
}

func TestRatificationDeletesProposalAndRecordsEnactment(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(6, bus.New(), testLogger())
	action := sampleAction(0, model.GovActionParameterChange, 0)

	s.HandleProcedures(context.Background(), decode.GovernanceMessage{
		Procedures: []decode.GovProcedure{{Proposal: &action}},
	})

	result := s.EpochBoundary(context.Background(), 1, func(a model.GovAction) bool {
		return a.Id == action.Id
	})
	require.Len(t, result.Enacted, 1)
	require.Equal(t, action.Id, result.Enacted[0].Id)
	require.Empty(t, result.Expired)
}

func TestExpiryAfterLifetimeElapses(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(2, bus.New(), testLogger())
	action := sampleAction(0, model.GovActionHardFork, 0)

	s.HandleProcedures(context.Background(), decode.GovernanceMessage{
		Procedures: []decode.GovProcedure{{Proposal: &action}},
	})

	noRatify := func(model.GovAction) bool { return false }

	result := s.EpochBoundary(context.Background(), 1, noRatify)
	require.Empty(t, result.Expired, "still within lifetime at epoch 1")

	result = s.EpochBoundary(context.Background(), 3, noRatify)
	require.Len(t, result.Expired, 1)
	require.Equal(t, action.Id, result.Expired[0].Id)
}

func TestProposalActivityMarksEpochActiveWithoutAVote(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(6, bus.New(), testLogger())
	require.False(t, s.WasActiveLastEpoch(0), "no proposals yet")

	action := sampleAction(0, model.GovActionInfo, 0)
	s.HandleProcedures(context.Background(), decode.GovernanceMessage{
		Procedures: []decode.GovProcedure{{Proposal: &action}},
	})

	// An active, unvoted proposal still counts as governance activity
	// (spec §4.5/§8.d): dormancy must not tick up while a proposal is
	// pending, whether or not anyone has voted on it.
	require.True(t, s.WasActiveLastEpoch(0))
	require.True(t, s.WasActiveLastEpoch(6), "active through submission+lifetime")
	require.False(t, s.WasActiveLastEpoch(7), "inactive once past lifetime")
}

func TestCommitteeUpdateTracksMembersAndNoConfidenceDissolvesThem(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(6, bus.New(), testLogger())
	require.Empty(t, s.CommitteeMembers())

	var memberA, memberB model.Credential
	memberA[0] = 0x01
	memberB[0] = 0x02

	update := sampleAction(0, model.GovActionCommitteeUpdate, 0)
	update.NewCommitteeMembers = map[model.Credential]uint64{memberA: 10, memberB: 10}
	s.HandleProcedures(context.Background(), decode.GovernanceMessage{
		Procedures: []decode.GovProcedure{{Proposal: &update}},
	})
	result := s.EpochBoundary(context.Background(), 1, func(a model.GovAction) bool {
		return a.Id == update.Id
	})
	require.Len(t, result.Enacted, 1)
	members := s.CommitteeMembers()
	require.Len(t, members, 2)
	require.Contains(t, members, string(memberA.Bytes()))
	require.Contains(t, members, string(memberB.Bytes()))

	noConfidence := sampleAction(1, model.GovActionNoConfidence, 1)
	s.HandleProcedures(context.Background(), decode.GovernanceMessage{
		Procedures: []decode.GovProcedure{{Proposal: &noConfidence}},
	})
	result = s.EpochBoundary(context.Background(), 2, func(a model.GovAction) bool {
		return a.Id == noConfidence.Id
	})
	require.Len(t, result.Enacted, 1)
	require.Empty(t, s.CommitteeMembers(), "a successful no-confidence motion dissolves the committee")
}

func TestVoteMarksEpochActiveEvenAfterProposalLifetimeEnds(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(0, bus.New(), testLogger())
	action := sampleAction(0, model.GovActionInfo, 0)

	s.HandleProcedures(context.Background(), decode.GovernanceMessage{
		Procedures: []decode.GovProcedure{{Proposal: &action}},
	})
	require.False(t, s.WasActiveLastEpoch(5), "proposal's lifetime has already elapsed")

	s.HandleProcedures(context.Background(), decode.GovernanceMessage{
		Procedures: []decode.GovProcedure{{Vote: &model.Vote{
			Role: model.VoterRoleDRep, Action: action.Id, Choice: model.VoteYes,
		}}},
	})
	require.True(t, s.WasActiveLastEpoch(5))
}
