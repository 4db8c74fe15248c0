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

// Package decode implements the block & transaction decode pipeline
// (spec §4.1): given a gouroboros-decoded block tagged with
// model.BlockInfo, it emits the ordered UTXO-delta, withdrawal,
// certificate, governance and fee messages downstream components
// consume.
package decode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/gouroboros/ledger"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/errs"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/topics"
)

// RawBlock is the input to the decode pipeline: a gouroboros-decoded
// block plus the provenance tag assigned by the chain source.
type RawBlock struct {
	Info  model.BlockInfo
	Block ledger.Block
}

// TxsMessage is the ordered list of raw transactions for one block.
type TxsMessage struct {
	Info model.BlockInfo
	Txs  []lcommon.Transaction
}

// UtxoDeltasMessage carries every input-spent and output-created entry
// for one block, in transaction order.
type UtxoDeltasMessage struct {
	Info   model.BlockInfo
	Deltas []model.UtxoDelta
}

// WithdrawalsMessage carries reward-account withdrawals for one block.
type WithdrawalsMessage struct {
	Info        model.BlockInfo
	Withdrawals map[model.Credential]uint64
}

// CertKind is the fixed, closed set of certificate kinds this pipeline
// understands, spanning Shelley through Conway eras per spec §9.
type CertKind int

const (
	CertStakeRegistration CertKind = iota
	CertStakeDelegation
	CertStakeDeregistration
	CertPoolRegistration
	CertPoolRetirement
	CertDRepRegistration
	CertDRepUpdate
	CertDRepDeregistration
	CertCommitteeHotKey
	CertMIR
)

// Cert is one decoded certificate. The kind-specific payload fields
// (Pool, Retirement, DRep, DelegatedPool, DelegatedDRep) are filled in
// here by classifyCertificate; only those relevant to Kind are set.
type Cert struct {
	Kind          CertKind
	Credential    model.Credential
	Pool          *model.PoolRegistration
	Retirement    *model.PoolRetirement
	DRep          *model.DRep
	DelegatedPool *model.PoolKeyHash
	DelegatedDRep *model.DRepId
	BlockNumber   uint64
	TxIndex       uint32
	CertIndex     uint32
}

// CertificatesMessage carries every certificate for one block, in
// transaction and in-transaction order (preserving pointer-cache
// population order, per spec §3).
type CertificatesMessage struct {
	Info  model.BlockInfo
	Certs []Cert
}

// GovProcedure is one governance procedure (a proposal submission or a
// vote) found in a transaction.
type GovProcedure struct {
	Proposal *model.GovAction
	Vote     *model.Vote
	TxIndex  uint32
}

// GovernanceMessage carries every governance procedure for one block.
type GovernanceMessage struct {
	Info       model.BlockInfo
	Procedures []GovProcedure
}

// FeesMessage carries the total fee collected in one block.
type FeesMessage struct {
	Info model.BlockInfo
	Fees uint64
}

// Decoder consumes RawBlock values and publishes the per-block message
// set on the bus. No validation is performed: a malformed transaction
// is logged at Warn level and skipped; nothing is sent to the bus's
// error channel.
type Decoder struct {
	bus *bus.Bus
	log *slog.Logger
}

// New creates a Decoder publishing onto b.
func New(b *bus.Bus, log *slog.Logger) *Decoder {
	return &Decoder{bus: b, log: log.With("component", "decode")}
}

// Decode processes one raw block and publishes its derived messages.
// Per spec §4.1, all per-block messages carry the identical BlockInfo
// and are published atomically with respect to block order: the
// caller must not begin decoding the next block until this call
// returns.
func (d *Decoder) Decode(ctx context.Context, raw RawBlock) error {
	info := raw.Info
	txs := raw.Block.Transactions()

	d.bus.Publish(ctx, topics.Txs, TxsMessage{Info: info, Txs: txs})

	var deltas []model.UtxoDelta
	withdrawals := make(map[model.Credential]uint64)
	var certs []Cert
	var procedures []GovProcedure
	var totalFees uint64

	for txIdx, tx := range txs {
		if tx == nil {
			d.log.Warn("skipping nil transaction", "block", info.Number, "tx_index", txIdx)
			continue
		}

		txDeltas, err := decodeTxDeltas(tx)
		if err != nil {
			d.log.Warn("dropping transaction: decode error",
				"block", info.Number, "tx_index", txIdx, "error", err)
			continue
		}
		deltas = append(deltas, txDeltas...)

		for addr, amt := range tx.Withdrawals() {
			if addr == nil || amt == nil {
				continue
			}
			cred, err := stakeCredentialOf(addr)
			if err != nil {
				continue
			}
			withdrawals[cred] += amt.Uint64()
		}

		txCerts, err := decodeCertificates(tx, info.Number, uint32(txIdx)) //nolint:gosec // bounded by block tx count
		if err != nil {
			d.log.Warn("dropping certificates: decode error",
				"block", info.Number, "tx_index", txIdx, "error", err)
		} else {
			certs = append(certs, txCerts...)
		}

		procedures = append(procedures, decodeGovProcedures(tx, uint32(txIdx))...) //nolint:gosec

		totalFees += tx.Fee().Uint64()
	}

	d.bus.Publish(ctx, topics.UtxoDeltas, UtxoDeltasMessage{Info: info, Deltas: deltas})
	d.bus.Publish(ctx, topics.Withdrawals, WithdrawalsMessage{Info: info, Withdrawals: withdrawals})
	d.bus.Publish(ctx, topics.Certificates, CertificatesMessage{Info: info, Certs: certs})
	d.bus.Publish(ctx, topics.Governance, GovernanceMessage{Info: info, Procedures: procedures})
	d.bus.Publish(ctx, topics.BlockFees, FeesMessage{Info: info, Fees: totalFees})
	return nil
}

// decodeTxDeltas builds the ordered input-spent then output-created
// delta stream for one transaction: inputs first (in their listed
// order), then outputs (in index order), matching spec §4.1's
// requirement that intra-block references resolve when applied
// sequentially.
func decodeTxDeltas(tx lcommon.Transaction) ([]model.UtxoDelta, error) {
	var out []model.UtxoDelta
	for _, in := range tx.Inputs() {
		if in == nil {
			return nil, errs.Decode(fmt.Errorf("nil transaction input"))
		}
		out = append(out, model.UtxoDelta{
			Ref:   model.UtxoRef{TxId: in.Id(), Index: in.Index()},
			Spent: true,
		})
	}
	for idx, o := range tx.Outputs() {
		if o == nil {
			return nil, errs.Decode(fmt.Errorf("nil transaction output at index %d", idx))
		}
		entry, err := toUtxoEntry(o)
		if err != nil {
			return nil, errs.Decode(err)
		}
		out = append(out, model.UtxoDelta{
			Ref: model.UtxoRef{
				TxId:  tx.Id(),
				Index: uint32(idx), //nolint:gosec // output index bounded by tx size
			},
			Created: &entry,
		})
	}
	return out, nil
}

func toUtxoEntry(o lcommon.TransactionOutput) (model.UtxoEntry, error) {
	addr, err := toModelAddress(o.Address())
	if err != nil {
		return model.UtxoEntry{}, err
	}
	entry := model.UtxoEntry{
		Address: addr,
		Value:   model.Value{Lovelace: o.Amount().Uint64()},
	}
	if assets := o.Assets(); assets != nil {
		entry.Value.Assets = make(map[lcommon.Blake2b224]map[string]uint64)
		for _, policy := range assets.Policies() {
			m := make(map[string]uint64)
			for _, name := range assets.Assets(policy) {
				amt := assets.Asset(policy, name)
				if amt != nil {
					m[string(name)] = amt.Uint64()
				}
			}
			entry.Value.Assets[policy] = m
		}
	}
	if dh := o.DatumHash(); dh != nil {
		entry.DatumHash = dh.Bytes()
	}
	if sr := o.ScriptRef(); sr != nil {
		entry.ScriptRef = sr.RawScriptBytes()
	}
	return entry, nil
}

// toModelAddress classifies a gouroboros address into the closed set
// of address kinds in spec §3, reading the CIP-19 header byte directly
// off the address bytes the way conformance/validation.go's
// extractStakeHashFromAddress does: reward addresses (types 0xE/0xF)
// are 29 bytes and are given AddressKindEnterprise with the credential
// in Payment; base addresses (types 0-3) are 57 bytes with the staking
// part in the last 28 bytes. Every other header type, including
// pointer (4/5) and enterprise (6/7) addresses, is given
// AddressKindByron with no staking part. Pointer addresses are not
// parsed: AddressKindPointer and Address.Pointer are never set here.
func toModelAddress(addr lcommon.Address) (model.Address, error) {
	raw, err := addr.Bytes()
	if err != nil {
		return model.Address{}, errs.Decode(fmt.Errorf("reading address bytes: %w", err))
	}
	if len(raw) == 0 {
		return model.Address{}, errs.Decode(fmt.Errorf("empty address"))
	}
	out := model.Address{Raw: addr}
	addrType := (raw[0] & 0xF0) >> 4
	switch {
	case addrType == 0xE || addrType == 0xF:
		out.Kind = model.AddressKindEnterprise
		if len(raw) == 29 {
			var cred model.Credential
			copy(cred[:], raw[1:29])
			out.Payment = cred
		}
	case addrType <= 0x3:
		out.Kind = model.AddressKindBase
		if len(raw) == 57 {
			var payment model.Credential
			copy(payment[:], raw[1:29])
			out.Payment = payment
			var stake model.Credential
			copy(stake[:], raw[29:57])
			out.Stake = &stake
		}
	default:
		out.Kind = model.AddressKindByron
	}
	return out, nil
}

// stakeCredentialOf resolves the reward-account credential a
// withdrawal is paid to, via the same StakeKeyHash accessor
// conformance/harness.go uses to key withdrawal amounts.
func stakeCredentialOf(addr *lcommon.Address) (model.Credential, error) {
	if addr == nil {
		return model.Credential{}, errs.Decode(fmt.Errorf("nil withdrawal address"))
	}
	return model.Credential(addr.StakeKeyHash()), nil
}

// decodeCertificates extracts the credential-bearing certificates this
// pipeline tracks from a transaction's certificate list. Certificate
// kinds outside the closed set in spec §3/§9 are ignored, not errored,
// since future era extensions are new variants rather than open
// extensions the decoder must reject wholesale.
func decodeCertificates(tx lcommon.Transaction, blockNumber uint64, txIndex uint32) ([]Cert, error) {
	var out []Cert
	for certIdx, raw := range tx.Certificates() {
		if raw == nil {
			continue
		}
		cert, ok := classifyCertificate(raw, blockNumber, txIndex, uint32(certIdx)) //nolint:gosec
		if ok {
			out = append(out, cert)
		}
	}
	return out, nil
}

// decodeGovProcedures extracts proposal submissions and votes from one
// transaction's governance procedures (CIP-1694), grounded on the
// tx.ProposalProcedures()/tx.VotingProcedures() consumers in
// conformance/mock_state_manager.go and conformance/validation.go.
func decodeGovProcedures(tx lcommon.Transaction, txIndex uint32) []GovProcedure {
	var out []GovProcedure
	txId := tx.Id()

	for idx, proposal := range tx.ProposalProcedures() {
		action := proposal.GovAction()
		if action == nil {
			continue
		}
		ga := &model.GovAction{
			Id:            model.GovActionId{TxId: txId, Index: uint8(idx)}, //nolint:gosec // index bounded by tx size
			ReturnAddress: model.Credential(proposal.RewardAccount().StakeKeyHash()),
		}
		switch act := action.(type) {
		case *conway.ConwayParameterChangeGovAction:
			ga.Kind = model.GovActionParameterChange
			ga.Parent = toParentId(act.ActionId)
			ga.ParameterChange = model.ParameterUpdate{"raw": act.ParamUpdate}
		case *lcommon.HardForkInitiationGovAction:
			ga.Kind = model.GovActionHardFork
			ga.Parent = toParentId(act.ActionId)
		case *lcommon.TreasuryWithdrawalGovAction:
			ga.Kind = model.GovActionTreasuryWithdrawal
			ga.TreasuryWithdrawals = make(map[model.Credential]uint64, len(act.Withdrawals))
			for addr, amt := range act.Withdrawals {
				if addr == nil {
					continue
				}
				ga.TreasuryWithdrawals[model.Credential(addr.StakeKeyHash())] = amt
			}
		case *lcommon.NoConfidenceGovAction:
			ga.Kind = model.GovActionNoConfidence
			ga.Parent = toParentId(act.ActionId)
		case *lcommon.UpdateCommitteeGovAction:
			ga.Kind = model.GovActionCommitteeUpdate
			ga.Parent = toParentId(act.ActionId)
			ga.NewCommitteeMembers = make(map[model.Credential]uint64, len(act.CredEpochs))
			for cred, epoch := range act.CredEpochs {
				if cred == nil {
					continue
				}
				ga.NewCommitteeMembers[cred.Credential] = uint64(epoch)
			}
		case *lcommon.NewConstitutionGovAction:
			ga.Kind = model.GovActionNewConstitution
			ga.Parent = toParentId(act.ActionId)
			if len(act.Constitution.ScriptHash) > 0 {
				ga.NewConstitutionHash = append([]byte(nil), act.Constitution.ScriptHash...)
			}
		default:
			ga.Kind = model.GovActionInfo
		}
		out = append(out, GovProcedure{Proposal: ga, TxIndex: txIndex})
	}

	for voter, actions := range tx.VotingProcedures() {
		if voter == nil {
			continue
		}
		role, ok := toVoterRole(voter.Type)
		if !ok {
			continue
		}
		for actionId, proc := range actions {
			if proc == nil {
				continue
			}
			v := model.Vote{
				Role:       role,
				Credential: voter.Hash,
				Action:     model.GovActionId{TxId: actionId.TransactionId, Index: uint8(actionId.GovActionIdx)}, //nolint:gosec
				Choice:     model.VoteChoice(proc.Vote),
			}
			out = append(out, GovProcedure{Vote: &v, TxIndex: txIndex})
		}
	}
	return out
}

func toParentId(id *lcommon.GovActionId) *model.GovActionId {
	if id == nil {
		return nil
	}
	return &model.GovActionId{TxId: id.TransactionId, Index: uint8(id.GovActionIdx)} //nolint:gosec
}

func toVoterRole(voterType uint8) (model.VoterRole, bool) {
	switch voterType {
	case lcommon.VoterTypeConstitutionalCommitteeHotKeyHash, lcommon.VoterTypeConstitutionalCommitteeHotScriptHash:
		return model.VoterRoleCommitteeMember, true
	case lcommon.VoterTypeDRepKeyHash, lcommon.VoterTypeDRepScriptHash:
		return model.VoterRoleDRep, true
	case lcommon.VoterTypeStakingPoolKeyHash:
		return model.VoterRoleSPO, true
	default:
		return 0, false
	}
}

// classifyCertificate maps a gouroboros certificate onto our closed
// Cert variant set by certificate type tag, extracting only the
// credential/pool fields the downstream components need. Certificate
// kinds outside this switch (e.g. genesis delegation) are ignored.
func classifyCertificate(raw lcommon.Certificate, blockNumber uint64, txIndex, certIndex uint32) (Cert, bool) {
	base := Cert{BlockNumber: blockNumber, TxIndex: txIndex, CertIndex: certIndex}
	switch c := raw.(type) {
	case *lcommon.StakeRegistrationCertificate:
		base.Kind = CertStakeRegistration
		base.Credential = c.StakeCredential.Credential
		return base, true
	case *lcommon.StakeDeregistrationCertificate:
		base.Kind = CertStakeDeregistration
		base.Credential = c.StakeCredential.Credential
		return base, true
	case *lcommon.StakeDelegationCertificate:
		base.Kind = CertStakeDelegation
		base.Credential = c.StakeCredential.Credential
		pool := c.PoolKeyHash
		base.DelegatedPool = &pool
		return base, true
	case *lcommon.PoolRegistrationCertificate:
		base.Kind = CertPoolRegistration
		base.Pool = toPoolRegistration(c)
		base.Credential = model.Credential(c.Operator)
		return base, true
	case *lcommon.PoolRetirementCertificate:
		base.Kind = CertPoolRetirement
		base.Retirement = &model.PoolRetirement{Pool: c.PoolKeyHash, TargetEpoch: c.Epoch}
		base.Credential = model.Credential(c.PoolKeyHash)
		return base, true
	case *lcommon.RegistrationDrepCertificate:
		base.Kind = CertDRepRegistration
		base.Credential = c.DrepCredential.Credential
		base.DRep = &model.DRep{
			Credential: c.DrepCredential.Credential,
			Deposit:    uint64(c.Amount), //nolint:gosec // deposits are non-negative by protocol
		}
		if c.Anchor != nil {
			base.DRep.AnchorURL = c.Anchor.Url
			h := c.Anchor.DataHash
			base.DRep.AnchorHash = h[:]
		}
		return base, true
	case *lcommon.DeregistrationDrepCertificate:
		base.Kind = CertDRepDeregistration
		base.Credential = c.DrepCredential.Credential
		return base, true
	case *lcommon.UpdateDrepCertificate:
		base.Kind = CertDRepUpdate
		base.Credential = c.DrepCredential.Credential
		return base, true
	case *lcommon.VoteDelegationCertificate:
		base.Kind = CertStakeDelegation
		base.Credential = c.StakeCredential.Credential
		drep := toDRepId(c.Drep)
		base.DelegatedDRep = &drep
		return base, true
	case *lcommon.AuthCommitteeHotCertificate:
		base.Kind = CertCommitteeHotKey
		base.Credential = c.ColdCredential.Credential
		return base, true
	default:
		return base, false
	}
}

func toPoolRegistration(c *lcommon.PoolRegistrationCertificate) *model.PoolRegistration {
	reg := &model.PoolRegistration{
		Operator:      c.Operator,
		VrfKeyHash:    c.VrfKeyHash,
		Pledge:        c.Pledge,
		Cost:          c.Cost,
		RewardAccount: c.RewardAccount,
		Relays:        c.Relays,
	}
	if c.Margin.Rat != nil {
		f, _ := c.Margin.Rat.Float64()
		reg.Margin = f
	}
	reg.Owners = append(reg.Owners, c.PoolOwners...)
	if c.PoolMetadata != nil {
		reg.MetadataURL = c.PoolMetadata.Url
		h := c.PoolMetadata.Hash
		reg.MetadataHash = h[:]
	}
	return reg
}

// toDRepId normalises a gouroboros DRep reference (a registered
// credential, or the predefined Abstain/NoConfidence sentinels) into
// our model type.
func toDRepId(d lcommon.Drep) model.DRepId {
	switch d.Type {
	case lcommon.DrepTypeAbstain:
		return model.DRepId{Abstain: true}
	case lcommon.DrepTypeNoConfidence:
		return model.DRepId{NoConf: true}
	default:
		return model.DRepId{Credential: d.Credential}
	}
}
