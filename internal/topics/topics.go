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

// Package topics names the bus topics published by each component, per
// spec §6. Names are configurable in principle; these are the defaults.
package topics

const (
	BlockHeader        = "cardano.block.header"
	BlockBody          = "cardano.block.body"
	BlockProposed      = "cardano.block.proposed"
	Txs                = "cardano.txs"
	UtxoDeltas         = "cardano.utxo.deltas"
	AddressDelta       = "cardano.address.delta"
	Withdrawals        = "cardano.withdrawals"
	StakeDeltas        = "cardano.stake.deltas"
	Certificates       = "cardano.certificates"
	Governance         = "cardano.governance"
	EnactState         = "cardano.governance.enacted"
	BlockFees          = "cardano.block.fees"
	EpochActivity      = "cardano.epoch.activity"
	EpochNonce         = "cardano.epoch.nonce"
	SpoDistribution    = "cardano.spo.distribution"
	DrepDistribution   = "cardano.drep.distribution"
	ProtocolParameters = "cardano.protocol.parameters"
	Pots               = "cardano.pots"
	Snapshot           = "cardano.snapshot"
	SnapshotComplete   = "cardano.snapshot.complete"
	SequenceBootstrapped = "cardano.sequence.bootstrapped"
	SyncCommand        = "cardano.sync.command"
)
