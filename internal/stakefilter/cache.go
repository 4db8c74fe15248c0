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

// Package stakefilter classifies UTXO address deltas by stake
// credential (spec §4.3), resolving pointer addresses
// against a cache of registered stake credentials keyed by the
// (block, tx, cert) index the pointer names.
package stakefilter

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/blinklabs-io/acropolis/internal/config"
	"github.com/blinklabs-io/acropolis/internal/errs"
	"github.com/blinklabs-io/acropolis/internal/model"
)

// PointerCache resolves a model.PointerRef to the stake credential that
// registered it. Its population policy is governed by config.CacheMode:
// predefined (loaded once, never written), read (loaded, not updated),
// write (always persisted on every new entry), write-if-absent
// (persisted only if no file existed at startup).
type PointerCache struct {
	mu             sync.RWMutex
	entries        map[model.PointerRef]model.Credential
	path           string
	mode           config.CacheMode
	writeFullCache bool
}

type cacheEntry struct {
	BlockNumber uint64 `json:"block_number"`
	TxIndex     uint32 `json:"tx_index"`
	CertIndex   uint32 `json:"cert_index"`
	Credential  string `json:"credential"` // hex
}

// LoadPointerCache opens the cache file named in cfg (if any) according
// to its mode. A missing file under "read" or "predefined" mode starts
// the cache empty rather than erroring, since an upstream replay from
// origin populates it as it goes.
func LoadPointerCache(cfg config.StakeDeltaFilter) (*PointerCache, error) {
	c := &PointerCache{
		entries:        make(map[model.PointerRef]model.Credential),
		path:           cfg.CachePath,
		mode:           cfg.CacheMode,
		writeFullCache: cfg.WriteFullCache,
	}
	if c.path == "" {
		return c, nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errs.IO(fmt.Errorf("reading pointer cache %q: %w", c.path, err))
	}
	var raw []cacheEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Decode(fmt.Errorf("parsing pointer cache %q: %w", c.path, err))
	}
	for _, e := range raw {
		var cred model.Credential
		if _, err := hex.Decode(cred[:], []byte(e.Credential)); err != nil {
			continue
		}
		c.entries[model.PointerRef{
			BlockNumber: e.BlockNumber,
			TxIndex:     e.TxIndex,
			CertIndex:   e.CertIndex,
		}] = cred
	}
	if c.mode == config.CacheModeWriteIfAbsent {
		// The file already existed, so it is read but not rewritten.
		c.mode = config.CacheModeRead
	}
	return c, nil
}

// Get resolves ptr to a credential, if known.
func (c *PointerCache) Get(ptr model.PointerRef) (model.Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cred, ok := c.entries[ptr]
	return cred, ok
}

// Register records a newly-seen stake-registration pointer. Per the
// cache mode, this either persists immediately ("write"), persists
// only when the cache file did not already exist ("write-if-absent";
// LoadPointerCache downgrades the mode to "read" when the file was
// found), or only updates the in-memory map ("read"/"predefined").
func (c *PointerCache) Register(ptr model.PointerRef, cred model.Credential) error {
	c.mu.Lock()
	c.entries[ptr] = cred
	mode := c.mode
	c.mu.Unlock()

	switch mode {
	case config.CacheModeWrite, config.CacheModeWriteIfAbsent:
		return c.flush()
	default:
		return nil
	}
}

func (c *PointerCache) flush() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	raw := make([]cacheEntry, 0, len(c.entries))
	for ptr, cred := range c.entries {
		raw = append(raw, cacheEntry{
			BlockNumber: ptr.BlockNumber,
			TxIndex:     ptr.TxIndex,
			CertIndex:   ptr.CertIndex,
			Credential:  hex.EncodeToString(cred[:]),
		})
	}
	c.mu.RUnlock()
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errs.Decode(err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil { //nolint:gosec // cache file, not a secret
		return errs.IO(fmt.Errorf("writing pointer cache %q: %w", c.path, err))
	}
	return nil
}

