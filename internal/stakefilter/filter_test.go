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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/blinklabs-io/acropolis/internal/bus"
	"github.com/blinklabs-io/acropolis/internal/config"
	"github.com/blinklabs-io/acropolis/internal/decode"
	"github.com/blinklabs-io/acropolis/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleCred(b byte) model.Credential {
	var cred model.Credential
	cred[0] = b
	return cred
}

func newCache(t *testing.T) *PointerCache {
	t.Helper()
	c, err := LoadPointerCache(config.StakeDeltaFilter{})
	require.NoError(t, err)
	return c
}

func TestHandleAddressDeltaResolvesBaseAddress(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := bus.New()
	received := make(chan model.StakeDelta, 1)
	b.Subscribe("cardano.stake.deltas", func(_ context.Context, msg bus.Message) error {
		received <- msg.(model.StakeDelta)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	f := New(newCache(t), b, testLogger())
	stake := sampleCred(0x07)
	f.HandleAddressDelta(ctx, model.AddressDelta{
		Address: model.Address{Kind: model.AddressKindBase, Stake: &stake},
		Delta:   1_500,
	})

	select {
	case got := <-received:
		require.Equal(t, stake, got.Credential)
		require.Equal(t, int64(1_500), got.Delta)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stake delta")
	}
}

func TestHandleAddressDeltaDropsEnterpriseAddress(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := New(newCache(t), bus.New(), testLogger())
	cred, ok := f.resolve(model.Address{Kind: model.AddressKindEnterprise})
	require.False(t, ok)
	require.Equal(t, model.Credential{}, cred)
}

func TestResolvePointerAddressViaCache(t *testing.T) {
	defer goleak.VerifyNone(t)
	cache := newCache(t)
	ptr := model.PointerRef{BlockNumber: 1, TxIndex: 0, CertIndex: 0}
	cred := sampleCred(0x09)
	require.NoError(t, cache.Register(ptr, cred))

	f := New(cache, bus.New(), testLogger())
	resolved, ok := f.resolve(model.Address{Kind: model.AddressKindPointer, Pointer: &ptr})
	require.True(t, ok)
	require.Equal(t, cred, resolved)
}

func TestRegisterCertificatesPopulatesCache(t *testing.T) {
	defer goleak.VerifyNone(t)
	cache := newCache(t)
	f := New(cache, bus.New(), testLogger())
	cred := sampleCred(0x0a)

	err := f.RegisterCertificates(decode.CertificatesMessage{
		Certs: []decode.Cert{{
			Kind:        decode.CertStakeRegistration,
			Credential:  cred,
			BlockNumber: 5,
			TxIndex:     2,
			CertIndex:   1,
		}},
	})
	require.NoError(t, err)

	got, ok := cache.Get(model.PointerRef{BlockNumber: 5, TxIndex: 2, CertIndex: 1})
	require.True(t, ok)
	require.Equal(t, cred, got)
}
