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

package decode

import (
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestToParentIdNilIsNil(t *testing.T) {
	defer goleak.VerifyNone(t)
	require.Nil(t, toParentId(nil))
}

func TestToParentIdCopiesFields(t *testing.T) {
	defer goleak.VerifyNone(t)
	var txId model.TxId
	txId[0] = 0x42
	got := toParentId(&lcommon.GovActionId{TransactionId: txId, GovActionIdx: 7})
	require.NotNil(t, got)
	require.Equal(t, txId, got.TxId)
	require.Equal(t, uint8(7), got.Index)
}

func TestToDRepIdAbstainAndNoConfidence(t *testing.T) {
	defer goleak.VerifyNone(t)
	abstain := toDRepId(lcommon.Drep{Type: lcommon.DrepTypeAbstain})
	require.True(t, abstain.Abstain)
	require.False(t, abstain.NoConf)

	noConf := toDRepId(lcommon.Drep{Type: lcommon.DrepTypeNoConfidence})
	require.True(t, noConf.NoConf)
	require.False(t, noConf.Abstain)
}

func TestToDRepIdCredential(t *testing.T) {
	defer goleak.VerifyNone(t)
	var cred model.Credential
	cred[0] = 0x09
	got := toDRepId(lcommon.Drep{Type: 99, Credential: cred})
	require.False(t, got.Abstain)
	require.False(t, got.NoConf)
	require.Equal(t, cred, got.Credential)
}

func TestToVoterRoleMapsKnownTypes(t *testing.T) {
	defer goleak.VerifyNone(t)
	cases := []struct {
		in   uint8
		want model.VoterRole
	}{
		{lcommon.VoterTypeConstitutionalCommitteeHotKeyHash, model.VoterRoleCommitteeMember},
		{lcommon.VoterTypeConstitutionalCommitteeHotScriptHash, model.VoterRoleCommitteeMember},
		{lcommon.VoterTypeDRepKeyHash, model.VoterRoleDRep},
		{lcommon.VoterTypeDRepScriptHash, model.VoterRoleDRep},
		{lcommon.VoterTypeStakingPoolKeyHash, model.VoterRoleSPO},
	}
	for _, tc := range cases {
		role, ok := toVoterRole(tc.in)
		require.True(t, ok)
		require.Equal(t, tc.want, role)
	}
}

func TestToVoterRoleRejectsUnknownType(t *testing.T) {
	defer goleak.VerifyNone(t)
	_, ok := toVoterRole(0xFF)
	require.False(t, ok)
}
