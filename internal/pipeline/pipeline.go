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

// Package pipeline wires every other internal package onto a shared
// bus.Bus and drives them with one sequencer (spec §5, §9): blocks are
// decoded and applied to the live state in arrival order, and epoch
// boundaries fan out in a fixed order so that snapshot rotation,
// registry retirement/expiry, governance ratification, parameter
// application, and reward calculation each see the others' prior-stage
// results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/acropolis/internal/accounts"
	"github.com/blinklabs-io/acropolis/internal/activity"
	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/config"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/drepstate"
	"github.com/blinklabs-io/acropolis/internal/governance"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/params"
	"github.com/blinklabs-io/acropolis/internal/spostate"
	"github.com/blinklabs-io/acropolis/internal/stakefilter"
	"github.com/blinklabs-io/acropolis/internal/topics"
	"github.com/blinklabs-io/acropolis/internal/utxostate"
)

// Pipeline owns the bus and every stage subscribed to it, plus the
// epoch-boundary orchestration that doesn't fit the bus's per-topic
// model (it needs a fixed cross-component order, not a fan-out).
type Pipeline struct {
	bus *bus.Bus
	log *slog.Logger

	decoder  *decode.Decoder
	utxo     *utxostate.State
	filter   *stakefilter.Filter
	spo      *spostate.State
	drep     *drepstate.State
	gov      *governance.State
	params   *params.State
	activity *activity.State
	accounts *accounts.State

	currentEpoch uint64
}

// Genesis seeds the state machines that need an initial value at
// epoch 0, matching the fields spec §3 calls out as genesis-derived.
type Genesis struct {
	Pots              model.Pots
	Parameters        model.ParameterUpdate
	GovActionLifetime uint64
	DRepActivity      uint64
	// ProtocolVersion is the Conway major protocol version; it gates
	// the DRep registration dormancy-credit subtraction (spec §4.5:
	// not applied during the version-9 bootstrap phase).
	ProtocolVersion uint64
}

// New wires every stage onto a fresh bus and subscribes them to each
// other's topics in the order spec §4 lists its modules.
func New(cfg config.Config, genesis Genesis, log *slog.Logger) (*Pipeline, error) {
	var opts []bus.Option
	if cfg.Workers > 0 {
		opts = append(opts, bus.WithWorkers(cfg.Workers))
	}
	b := bus.New(opts...)

	store, err := openStore(cfg.UtxoState)
	if err != nil {
		return nil, err
	}
	cache, err := stakefilter.LoadPointerCache(cfg.StakeDeltaFilter)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		bus:      b,
		log:      log,
		decoder:  decode.New(b, log),
		utxo:     utxostate.New(store, b, log),
		filter:   stakefilter.New(cache, b, log),
		spo:      spostate.New(b, log),
		drep:     drepstate.New(genesis.DRepActivity, genesis.ProtocolVersion, b, log),
		gov:      governance.New(genesis.GovActionLifetime, b, log),
		params:   params.New(genesis.Parameters, b, log),
		activity: activity.New(0, b, log),
		accounts: accounts.New(genesis.Pots, b, log),
	}

	b.Subscribe(topics.UtxoDeltas, func(ctx context.Context, msg bus.Message) error {
		m := msg.(decode.UtxoDeltasMessage)
		return p.utxo.Apply(ctx, m.Info, m)
	})
	b.Subscribe(topics.AddressDelta, func(ctx context.Context, msg bus.Message) error {
		p.filter.HandleAddressDelta(ctx, msg.(model.AddressDelta))
		return nil
	})
	b.Subscribe(topics.StakeDeltas, func(ctx context.Context, msg bus.Message) error {
		p.accounts.HandleStakeDelta(ctx, msg.(model.StakeDelta))
		return nil
	})
	b.Subscribe(topics.Certificates, func(ctx context.Context, msg bus.Message) error {
		m := msg.(decode.CertificatesMessage)
		if err := p.filter.RegisterCertificates(m); err != nil {
			return err
		}
		p.spo.HandleCertificates(ctx, m)
		p.drep.HandleCertificates(ctx, p.currentEpoch, m)
		applyAccountCertificates(p.accounts, m)
		return nil
	})
	b.Subscribe(topics.Governance, func(ctx context.Context, msg bus.Message) error {
		p.gov.HandleProcedures(ctx, msg.(decode.GovernanceMessage))
		return nil
	})
	b.Subscribe(topics.BlockFees, func(ctx context.Context, msg bus.Message) error {
		p.activity.HandleFees(ctx, msg.(decode.FeesMessage))
		return nil
	})

	return p, nil
}

func openStore(cfg config.UtxoState) (utxostate.Store, error) {
	switch cfg.Store.ResolveStore() {
	case config.StoreKindMemory:
		return utxostate.NewMemoryStore(), nil
	case config.StoreKindDisk:
		return utxostate.OpenDiskStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("acropolis: unsupported utxo store kind %q", cfg.Store)
	}
}

// applyAccountCertificates feeds the deposit- and delegation-relevant
// certificate kinds into internal/accounts; spostate/drepstate own
// registry membership, but deposit bookkeeping and UTXO-stake
// delegation live on the stake account itself.
func applyAccountCertificates(a *accounts.State, msg decode.CertificatesMessage) {
	const stakeKeyDeposit = 2_000_000
	const drepDeposit = 500_000_000
	for _, c := range msg.Certs {
		switch c.Kind {
		case decode.CertStakeRegistration:
			a.Register(c.Credential, stakeKeyDeposit)
		case decode.CertStakeDeregistration:
			a.Deregister(c.Credential)
		case decode.CertStakeDelegation:
			if c.DelegatedPool != nil {
				a.Delegate(c.Credential, *c.DelegatedPool)
			}
		case decode.CertDRepRegistration:
			a.Register(c.Credential, drepDeposit)
		case decode.CertDRepDeregistration:
			a.Deregister(c.Credential)
		}
	}
}

// Start begins delivering bus messages.
func (p *Pipeline) Start(ctx context.Context) {
	p.bus.Start(ctx)
}

// Errors returns the bus's error channel; a fatal invariant violation
// arrives here and the caller should stop feeding blocks (spec §7).
func (p *Pipeline) Errors() <-chan error {
	return p.bus.Errors()
}

// ProcessBlock decodes and applies one block, triggering the
// epoch-boundary sequence first whenever the block starts a new epoch
// (spec §9: the boundary runs before the new epoch's first block's
// certificates are applied, since registrations in the new epoch must
// not affect the snapshot just rotated in).
func (p *Pipeline) ProcessBlock(ctx context.Context, raw decode.RawBlock) error {
	if raw.Info.IsEpochStart && raw.Info.Epoch > p.currentEpoch {
		p.runEpochBoundary(ctx, raw.Info.Epoch)
	}
	return p.decoder.Decode(ctx, raw)
}

// runEpochBoundary executes the fixed cross-component order spec §9
// requires: registry retirement/expiry before ratification (so an
// expired DRep can't ratify), ratification before parameter
// application (so an enacted parameter change applies this epoch),
// and the reward calculation last (so it sees the new Go snapshot).
func (p *Pipeline) runEpochBoundary(ctx context.Context, epoch uint64) {
	poolRegs := p.spo.CurrentRegistrations()
	retiredPools := p.spo.EpochBoundary(ctx, epoch)
	refunds := p.accounts.RefundPoolDeposits(poolRegs, retiredPools)
	p.logRefunds("pool", refunds)

	wasActive := p.gov.WasActiveLastEpoch(epoch)
	expiredDreps := p.drep.EpochBoundary(ctx, epoch, wasActive)
	refunds = p.accounts.RefundDRepDeposits(expiredDreps)
	p.logRefunds("drep", refunds)

	result := p.gov.EpochBoundary(ctx, epoch, p.ratify)
	expireRefunds := p.accounts.ExpireProposalDeposits(result.Expired)
	p.logRefunds("proposal-expired", expireRefunds)
	for _, enacted := range result.Enacted {
		if enacted.Kind == model.GovActionParameterChange {
			p.params.ApplyEnacted(ctx, epoch, enacted.ParameterChange)
		}
	}
	p.params.AdvanceEpoch(ctx, epoch)

	doneActivity := p.activity.EpochBoundary(ctx, epoch)
	p.accounts.RotateSnapshot(epoch)

	_, err := p.accounts.ProcessEpochBoundary(ctx, accounts.EpochRewardInputs{
		Epoch:         epoch,
		TotalFees:     doneActivity.TotalFees,
		TotalBlocks:   doneActivity.TotalBlocks,
		BlocksByPool:  doneActivity.BlocksByPool,
		RetiredPools:  toPoolSet(retiredPools),
		PoolParams:    toPoolParamPointers(poolRegs),
		Parameters:    p.params.At(epoch),
	})
	if err != nil {
		p.log.Error("reward calculation failed", "epoch", epoch, "error", err)
	}

	p.currentEpoch = epoch
}

// Fractions of total cast (non-abstaining) weight required to ratify,
// read from the live protocol parameters with these keys. Real Conway
// thresholds vary by action kind (hard-fork, security-relevant
// parameter changes, and no-confidence motions all carry different
// DRep/SPO/committee ratios); this pipeline applies one uniform
// threshold per role to every action kind, a documented simplification
// (DESIGN.md).
const (
	paramKeyDRepThreshold        = "drepThreshold"
	paramKeySpoThreshold         = "spoThreshold"
	paramKeyCommitteeThreshold   = "committeeThreshold"
	defaultRatificationThreshold = 0.5
)

// ratify evaluates whether a governance action's accumulated votes meet
// the SPO/DRep/committee thresholds spec §4.6 requires, weighing DRep
// and SPO votes by delegated stake (from the current Mark snapshot, the
// same one the epoch's ratification pass is running against) and
// committee votes by member count.
func (p *Pipeline) ratify(a model.GovAction) bool {
	mark := p.accounts.MarkSnapshot()
	if mark == nil {
		// No stake snapshot yet (still within the first epoch): nothing
		// can be weighed, so nothing ratifies.
		return false
	}

	drepStake := stakeByCredString(p.drep.DelegatedStake(mark))
	spoStake := stakeByPoolString(p.spo.DelegatedStake(mark))
	committee := p.gov.CommitteeMembers()

	values := p.params.Current().Values
	drepThreshold := paramFraction(values, paramKeyDRepThreshold, defaultRatificationThreshold)
	spoThreshold := paramFraction(values, paramKeySpoThreshold, defaultRatificationThreshold)
	ccThreshold := paramFraction(values, paramKeyCommitteeThreshold, defaultRatificationThreshold)

	drepYes, drepNo := tallyWeighted(a.Votes[model.VoterRoleDRep], drepStake)
	spoYes, spoNo := tallyWeighted(a.Votes[model.VoterRoleSPO], spoStake)

	// With no sitting committee (e.g. before the first CommitteeUpdate
	// enacts, or after a NoConfidence dissolves it) CIP-1694 treats the
	// committee condition as vacuously satisfied rather than blocking
	// every action indefinitely.
	ccMet := true
	if len(committee) > 0 {
		ccYes, ccNo := tallyCommittee(a.Votes[model.VoterRoleCommitteeMember], committee)
		ccMet = meetsThreshold(ccYes, ccNo, ccThreshold)
	}

	return meetsThreshold(drepYes, drepNo, drepThreshold) &&
		meetsThreshold(spoYes, spoNo, spoThreshold) &&
		ccMet
}

func stakeByCredString(stake map[model.Credential]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(stake))
	for cred, amt := range stake {
		out[string(cred.Bytes())] = amt
	}
	return out
}

func stakeByPoolString(stake map[model.PoolKeyHash]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(stake))
	for pool, amt := range stake {
		out[string(pool.Bytes())] = amt
	}
	return out
}

// tallyWeighted sums the stake behind yes and no votes, ignoring
// abstentions and voters with no recorded delegated stake.
func tallyWeighted(votes map[string]model.VoteChoice, weightByCred map[string]uint64) (yes, no uint64) {
	for cred, choice := range votes {
		switch choice {
		case model.VoteYes:
			yes += weightByCred[cred]
		case model.VoteNo:
			no += weightByCred[cred]
		}
	}
	return yes, no
}

// tallyCommittee sums yes/no votes one-member-one-vote, counting only
// sitting committee members.
func tallyCommittee(votes map[string]model.VoteChoice, committee map[string]uint64) (yes, no uint64) {
	for cred, choice := range votes {
		if _, sitting := committee[cred]; !sitting {
			continue
		}
		switch choice {
		case model.VoteYes:
			yes++
		case model.VoteNo:
			no++
		}
	}
	return yes, no
}

// meetsThreshold reports whether yes stake/votes clear the required
// fraction of cast (non-abstaining) weight. No votes cast at all never
// ratifies, since a vacuous majority isn't a majority.
func meetsThreshold(yes, no uint64, threshold float64) bool {
	total := yes + no
	if total == 0 {
		return false
	}
	return float64(yes)/float64(total) >= threshold
}

// paramFraction type-asserts a float64 threshold out of the opaque
// parameter set, falling back to def if the key is absent or holds an
// unexpected type.
func paramFraction(values model.ParameterUpdate, key string, def float64) float64 {
	v, ok := values[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return f
}

func (p *Pipeline) logRefunds(kind string, refunds []accounts.Refund) {
	if len(refunds) == 0 {
		return
	}
	p.log.Info("deposit refunds", "kind", kind, "count", len(refunds))
}

func toPoolSet(pools []model.PoolKeyHash) map[model.PoolKeyHash]struct{} {
	out := make(map[model.PoolKeyHash]struct{}, len(pools))
	for _, p := range pools {
		out[p] = struct{}{}
	}
	return out
}

func toPoolParamPointers(regs map[model.PoolKeyHash]model.PoolRegistration) map[model.PoolKeyHash]*model.PoolRegistration {
	out := make(map[model.PoolKeyHash]*model.PoolRegistration, len(regs))
	for k, v := range regs {
		reg := v
		out[k] = &reg
	}
	return out
}
