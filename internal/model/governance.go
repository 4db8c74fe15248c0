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

package model

import "fmt"

// GovActionId identifies a governance action by the transaction that
// submitted it and an index within that transaction (max 256 per tx,
// per the CIP-0129 gov_action encoding in spec §6).
type GovActionId struct {
	TxId  TxId
	Index uint8
}

func (id GovActionId) String() string {
	return fmt.Sprintf("%s#%d", id.TxId.String(), id.Index)
}

// GovActionKind is the fixed, closed set of Conway governance action
// kinds.
type GovActionKind int

const (
	GovActionParameterChange GovActionKind = iota
	GovActionHardFork
	GovActionTreasuryWithdrawal
	GovActionNoConfidence
	GovActionCommitteeUpdate
	GovActionNewConstitution
	GovActionInfo
)

// VoterRole is the fixed set of voter roles in CIP-1694.
type VoterRole int

const (
	VoterRoleDRep VoterRole = iota
	VoterRoleSPO
	VoterRoleCommitteeMember
)

// VoteChoice is the fixed set of vote choices.
type VoteChoice int

const (
	VoteNo VoteChoice = iota
	VoteYes
	VoteAbstain
)

// Vote is cast by a single voter on a single action; a re-vote by the
// same (role, credential) on the same action overwrites the prior one.
type Vote struct {
	Role       VoterRole
	Credential Credential
	Action     GovActionId
	Choice     VoteChoice
}

// ParameterUpdate is a sparse set of protocol-parameter field changes,
// applied on top of the previous epoch's parameters at ratification.
type ParameterUpdate map[string]any

// GovAction is a governance proposal: its kind-specific payload,
// lifetime bookkeeping, and accumulated votes.
type GovAction struct {
	Id              GovActionId
	Kind            GovActionKind
	Parent          *GovActionId
	Deposit         uint64
	ReturnAddress   Credential
	SubmissionEpoch uint64
	// ParameterChange is set iff Kind == GovActionParameterChange.
	ParameterChange ParameterUpdate
	// TreasuryWithdrawals is set iff Kind == GovActionTreasuryWithdrawal.
	TreasuryWithdrawals map[Credential]uint64
	// NewCommittee/NewConstitution populate the committee-update and
	// new-constitution payloads respectively.
	NewCommitteeMembers map[Credential]uint64 // member -> expiry epoch
	NewCommitteeRemoved []Credential
	NewConstitutionHash []byte

	Votes map[VoterRole]map[string]VoteChoice // role -> credential hex -> choice
}

// IsActive reports whether the action is active at epoch e, i.e.
// submission-epoch <= e <= submission-epoch + lifetime.
func (a *GovAction) IsActive(epoch, lifetime uint64) bool {
	return epoch >= a.SubmissionEpoch && epoch <= a.SubmissionEpoch+lifetime
}

// RecordVote overwrites any prior vote by the same role+credential.
func (a *GovAction) RecordVote(v Vote) {
	if a.Votes == nil {
		a.Votes = make(map[VoterRole]map[string]VoteChoice)
	}
	if a.Votes[v.Role] == nil {
		a.Votes[v.Role] = make(map[string]VoteChoice)
	}
	a.Votes[v.Role][string(v.Credential.Bytes())] = v.Choice
}

// EnactState is the set of most-recently-ratified governance actions,
// keyed by kind, referenced by subsequent proposals' parent pointers.
type EnactState struct {
	Epoch              uint64
	ProtocolParameters *GovActionId
	HardFork           *GovActionId
	Committee          *GovActionId
	Constitution       *GovActionId
}
