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

package drepstate

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/acropolis/internal/bus"
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

func TestRegisterSetsExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(20, 10, bus.New(), testLogger())
	cred := sampleCred(0x01)

	s.HandleCertificates(context.Background(), 10, decode.CertificatesMessage{
		Certs: []decode.Cert{{Kind: decode.CertDRepRegistration, Credential: cred, DRep: &model.DRep{Credential: cred}}},
	})

	expired := s.EpochBoundary(context.Background(), 29, true)
	require.Empty(t, expired, "drep registered at epoch 10 with activity 20 should still be active at epoch 29")

	expired = s.EpochBoundary(context.Background(), 31, true)
	require.Equal(t, []model.Credential{cred}, expired)
}

func TestDormancyCreditSubtractsFromRegistrationFromVersion10(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(100, 10, bus.New(), testLogger())
	cred := sampleCred(0x02)

	// Two consecutive dormant epochs with no governance activity build
	// up a dormancy credit of 2.
	_ = s.EpochBoundary(context.Background(), 1, false)
	_ = s.EpochBoundary(context.Background(), 2, false)

	// A drep registering under protocol version 10 has the accumulated
	// dormancy credit *subtracted* from its base activity lifetime
	// (spec §4.5, scenario §8.e: 300 + 100 - 2 = 398).
	s.HandleCertificates(context.Background(), 300, decode.CertificatesMessage{
		Certs: []decode.Cert{{Kind: decode.CertDRepRegistration, Credential: cred, DRep: &model.DRep{Credential: cred}}},
	})

	expired := s.EpochBoundary(context.Background(), 398, true)
	require.Empty(t, expired, "dormancy credit at registration time should bring expiry down to epoch 398")

	expired = s.EpochBoundary(context.Background(), 399, true)
	require.Equal(t, []model.Credential{cred}, expired)
}

func TestDormancyCreditNotSubtractedDuringBootstrapVersion9(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(100, 9, bus.New(), testLogger())
	cred := sampleCred(0x02)

	_ = s.EpochBoundary(context.Background(), 1, false)
	_ = s.EpochBoundary(context.Background(), 2, false)

	// Under protocol version 9 (bootstrap phase) the dormancy credit is
	// not applied to registration, so expiry is just 300 + 100 = 400.
	s.HandleCertificates(context.Background(), 300, decode.CertificatesMessage{
		Certs: []decode.Cert{{Kind: decode.CertDRepRegistration, Credential: cred, DRep: &model.DRep{Credential: cred}}},
	})

	expired := s.EpochBoundary(context.Background(), 400, true)
	require.Empty(t, expired, "bootstrap-phase registration should not receive the dormancy credit")

	expired = s.EpochBoundary(context.Background(), 401, true)
	require.Equal(t, []model.Credential{cred}, expired)
}

func TestDormancyCreditAlwaysSubtractsFromVote(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(100, 9, bus.New(), testLogger())
	cred := sampleCred(0x05)

	s.HandleCertificates(context.Background(), 0, decode.CertificatesMessage{
		Certs: []decode.Cert{{Kind: decode.CertDRepRegistration, Credential: cred, DRep: &model.DRep{Credential: cred}}},
	})

	_ = s.EpochBoundary(context.Background(), 1, false)
	_ = s.EpochBoundary(context.Background(), 2, false)

	// RecordActivity (vote/update) always subtracts the dormancy credit,
	// even during the version-9 bootstrap phase.
	s.RecordActivity(cred, 300)

	expired := s.EpochBoundary(context.Background(), 398, true)
	require.Empty(t, expired, "vote activity should always receive the dormancy credit")

	expired = s.EpochBoundary(context.Background(), 399, true)
	require.Equal(t, []model.Credential{cred}, expired)
}

func TestDeregistrationRemovesDrep(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(20, 10, bus.New(), testLogger())
	cred := sampleCred(0x03)

	s.HandleCertificates(context.Background(), 0, decode.CertificatesMessage{
		Certs: []decode.Cert{{Kind: decode.CertDRepRegistration, Credential: cred, DRep: &model.DRep{Credential: cred}}},
	})
	s.HandleCertificates(context.Background(), 1, decode.CertificatesMessage{
		Certs: []decode.Cert{{Kind: decode.CertDRepDeregistration, Credential: cred}},
	})

	expired := s.EpochBoundary(context.Background(), 1, true)
	require.Empty(t, expired, "a voluntarily deregistered drep is removed immediately, not expired")
}
