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

// Package utxostate implements the UTXO set (spec §4.2): applying
// per-block deltas from internal/decode, tracking live outputs, and
// publishing address-balance deltas for the stake-delta filter.
package utxostate

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/blinklabs-io/gouroboros/cbor"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/blinklabs-io/acropolis/internal/errs"
	"github.com/blinklabs-io/acropolis/internal/model"
)

// Store persists the live UTXO set. Two implementations exist: an
// in-memory map for tests and the "memory" config.StoreKind, and a
// badger-backed store for "disk" (the resolved form of every other
// config.StoreKind except "fake"; see config.StoreKind.ResolveStore).
type Store interface {
	Get(ref model.UtxoRef) (model.UtxoEntry, bool, error)
	Put(ref model.UtxoRef, entry model.UtxoEntry) error
	Delete(ref model.UtxoRef) error
	Close() error
}

// MemoryStore is a mutex-guarded map-backed Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[model.UtxoRef]model.UtxoEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[model.UtxoRef]model.UtxoEntry)}
}

func (s *MemoryStore) Get(ref model.UtxoRef) (model.UtxoEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[ref]
	return e, ok, nil
}

func (s *MemoryStore) Put(ref model.UtxoRef, entry model.UtxoEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ref] = entry
	return nil
}

func (s *MemoryStore) Delete(ref model.UtxoRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ref)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// DiskStore persists entries in a badger database, CBOR-encoded the
// way the teacher's ledger package CBOR-encodes datums and script refs.
type DiskStore struct {
	db *badger.DB
}

// OpenDiskStore opens (creating if absent) a badger database at dir.
func OpenDiskStore(dir string) (*DiskStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.IO(fmt.Errorf("opening utxo store at %q: %w", dir, err))
	}
	return &DiskStore{db: db}, nil
}

func refKey(ref model.UtxoRef) []byte {
	key := make([]byte, 32+4)
	copy(key, ref.TxId[:])
	binary.BigEndian.PutUint32(key[32:], ref.Index)
	return key
}

func (s *DiskStore) Get(ref model.UtxoRef) (model.UtxoEntry, bool, error) {
	var entry model.UtxoEntry
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(refKey(ref))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			_, err := cbor.Decode(val, &entry)
			return err
		})
	})
	if err != nil {
		return model.UtxoEntry{}, false, errs.IO(err)
	}
	return entry, found, nil
}

func (s *DiskStore) Put(ref model.UtxoRef, entry model.UtxoEntry) error {
	val, err := cbor.Encode(entry)
	if err != nil {
		return errs.Decode(fmt.Errorf("encoding utxo entry: %w", err))
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(refKey(ref), val)
	})
	if err != nil {
		return errs.IO(err)
	}
	return nil
}

func (s *DiskStore) Delete(ref model.UtxoRef) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(refKey(ref))
	})
	if err != nil {
		return errs.IO(err)
	}
	return nil
}

func (s *DiskStore) Close() error {
	return s.db.Close()
}
