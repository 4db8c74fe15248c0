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

package stakefilter

import (
	"context"
	"log/slog"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/blinklabs-io/acropolis/internal/topics"
)

// Filter turns address-keyed UTXO deltas into credential-keyed stake
// deltas, dropping addresses with no staking part (enterprise/Byron),
// resolving base addresses directly and pointer addresses via cache.
type Filter struct {
	cache *PointerCache
	bus   *bus.Bus
	log   *slog.Logger
}

// New creates a Filter publishing resolved deltas on b.
func New(cache *PointerCache, b *bus.Bus, log *slog.Logger) *Filter {
	return &Filter{cache: cache, bus: b, log: log.With("component", "stakefilter")}
}

// HandleAddressDelta resolves one address-balance change to its stake
// credential, if any, and forwards it as a model.StakeDelta.
func (f *Filter) HandleAddressDelta(ctx context.Context, d model.AddressDelta) {
	cred, ok := f.resolve(d.Address)
	if !ok {
		return
	}
	f.bus.Publish(ctx, topics.StakeDeltas, model.StakeDelta{Credential: cred, Delta: d.Delta})
}

func (f *Filter) resolve(addr model.Address) (model.Credential, bool) {
	switch addr.Kind {
	case model.AddressKindBase:
		if addr.Stake != nil {
			return *addr.Stake, true
		}
		return model.Credential{}, false
	case model.AddressKindPointer:
		if addr.Pointer == nil {
			return model.Credential{}, false
		}
		return f.cache.Get(*addr.Pointer)
	default:
		return model.Credential{}, false
	}
}

// RegisterCertificates feeds stake-registration certificates from one
// block's decode.CertificatesMessage into the pointer cache, keyed by
// the (block, tx, cert) index a later pointer address would name.
func (f *Filter) RegisterCertificates(msg decode.CertificatesMessage) error {
	for _, c := range msg.Certs {
		if c.Kind != decode.CertStakeRegistration {
			continue
		}
		ptr := model.PointerRef{
			BlockNumber: c.BlockNumber,
			TxIndex:     c.TxIndex,
			CertIndex:   c.CertIndex,
		}
		if err := f.cache.Register(ptr, c.Credential); err != nil {
			return err
		}
	}
	return nil
}
