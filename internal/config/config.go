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

// Package config decodes the per-component configuration surface from
// spec §6 out of a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CacheMode selects how the stake-delta filter's pointer cache is
// populated, per spec §4.3.
type CacheMode string

const (
	CacheModePredefined    CacheMode = "predefined"
	CacheModeRead          CacheMode = "read"
	CacheModeWrite         CacheMode = "write"
	CacheModeWriteIfAbsent CacheMode = "write-if-absent"
)

// SyncPoint selects where the upstream chain fetcher begins.
type SyncPoint string

const (
	SyncPointOrigin   SyncPoint = "origin"
	SyncPointTip      SyncPoint = "tip"
	SyncPointSnapshot SyncPoint = "snapshot"
	SyncPointCache    SyncPoint = "cache"
)

// StoreKind selects the UTXO/accounts store implementation. Acropolis
// implements "memory" and "disk" (badger-backed); the remaining values
// mirror the reference implementation's Rust store names and are
// accepted for config compatibility. ResolveStore maps them onto
// "disk"; no log line records the substitution.
type StoreKind string

const (
	StoreKindMemory       StoreKind = "memory"
	StoreKindDashmap      StoreKind = "dashmap"
	StoreKindFjall        StoreKind = "fjall"
	StoreKindFjallAsync   StoreKind = "fjall-async"
	StoreKindSled         StoreKind = "sled"
	StoreKindSledAsync    StoreKind = "sled-async"
	StoreKindFake         StoreKind = "fake"
	StoreKindDisk         StoreKind = "disk"
)

// ResolveStore maps any of the spec's enumerated store kinds onto
// memory, disk, or fake: memory and fake are returned as is, the empty
// value becomes memory, and every other kind becomes disk. There is no
// fake store implementation; internal/pipeline rejects the fake kind.
func (s StoreKind) ResolveStore() StoreKind {
	switch s {
	case StoreKindMemory, StoreKindFake:
		return s
	case "":
		return StoreKindMemory
	default:
		return StoreKindDisk
	}
}

// StakeDeltaFilter configures internal/stakefilter.
type StakeDeltaFilter struct {
	CacheMode        CacheMode `yaml:"cache-mode"`
	CachePath        string    `yaml:"cache-path"`
	WriteFullCache   bool      `yaml:"write-full-cache"`
	Network          string    `yaml:"network"`
}

// UpstreamChainFetcher configures the (external, out-of-scope) chain
// source; kept here only so the config file format round-trips.
type UpstreamChainFetcher struct {
	SyncPoint   SyncPoint `yaml:"sync-point"`
	NodeAddress string    `yaml:"node-address"`
	MagicNumber uint32    `yaml:"magic-number"`
}

// UtxoState configures internal/utxostate.
type UtxoState struct {
	Store   StoreKind `yaml:"store"`
	DataDir string    `yaml:"data-dir"`
}

// AccountsState configures internal/accounts's optional offline
// verifiers.
type AccountsState struct {
	PotsVerifierCSV    string `yaml:"pots-verifier-csv"`
	RewardsVerifierCSV string `yaml:"rewards-verifier-csv"`
}

// Config is the top-level configuration document.
type Config struct {
	StakeDeltaFilter     StakeDeltaFilter     `yaml:"stake-delta-filter"`
	UpstreamChainFetcher UpstreamChainFetcher `yaml:"upstream-chain-fetcher"`
	UtxoState            UtxoState            `yaml:"utxo-state"`
	AccountsState        AccountsState        `yaml:"accounts-state"`
	Workers              int                  `yaml:"workers"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		StakeDeltaFilter: StakeDeltaFilter{
			CacheMode: CacheModeWriteIfAbsent,
		},
		UpstreamChainFetcher: UpstreamChainFetcher{
			SyncPoint: SyncPointTip,
		},
		UtxoState: UtxoState{
			Store: StoreKindMemory,
		},
		Workers: 8,
	}
}

// Load reads and decodes a YAML config file at path.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("acropolis: reading config %q: %w", path, err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("acropolis: parsing config %q: %w", path, err)
	}
	return cfg, nil
}
