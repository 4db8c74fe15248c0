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

package accounts

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/blinklabs-io/acropolis/internal/model"
)

// Mismatch is one row where the CSV verifier's expected value disagrees
// with the live accounts state, structured for slog.
type Mismatch struct {
	Epoch    uint64
	Subject  string // "pots" or a hex-encoded reward-account credential
	Field    string
	Expected uint64
	Actual   uint64
}

// VerifyPotsCSV reads an offline pots trace (columns: epoch, reserves,
// treasury, deposits, donations) and reports every epoch whose recorded
// totals disagree with the live state's history. This is a diagnostic
// tool, not part of the replay path: a mismatch never aborts replay,
// it's only ever logged for CI gating (spec §6/§7).
func VerifyPotsCSV(r io.Reader, history map[uint64]model.Pots) ([]Mismatch, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading pots csv: %w", err)
	}

	var out []Mismatch
	for i, row := range rows {
		if i == 0 && looksLikeHeader(row) {
			continue
		}
		if len(row) < 5 {
			continue
		}
		epoch, reserves, treasury, deposits, donations, err := parsePotsRow(row)
		if err != nil {
			return nil, fmt.Errorf("pots csv row %d: %w", i, err)
		}
		live, ok := history[epoch]
		if !ok {
			continue
		}
		out = append(out, diffPots(epoch, live, model.Pots{
			Reserves: reserves, Treasury: treasury, Deposits: deposits, Donations: donations,
		})...)
	}
	return out, nil
}

// VerifyRewardsCSV reads an offline per-account reward trace (columns:
// epoch, stake_address_hex, reward_lovelace) and reports every
// disagreement against the rewards actually credited this replay.
func VerifyRewardsCSV(r io.Reader, credited map[uint64]map[model.Credential]uint64) ([]Mismatch, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rewards csv: %w", err)
	}

	var out []Mismatch
	for i, row := range rows {
		if i == 0 && looksLikeHeader(row) {
			continue
		}
		if len(row) < 3 {
			continue
		}
		epoch, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rewards csv row %d: bad epoch: %w", i, err)
		}
		cred, err := parseCredentialHex(row[1])
		if err != nil {
			return nil, fmt.Errorf("rewards csv row %d: bad credential: %w", i, err)
		}
		expected, err := strconv.ParseUint(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rewards csv row %d: bad amount: %w", i, err)
		}
		actual := credited[epoch][cred]
		if actual != expected {
			out = append(out, Mismatch{
				Epoch:    epoch,
				Subject:  fmt.Sprintf("%x", cred),
				Field:    "reward",
				Expected: expected,
				Actual:   actual,
			})
		}
	}
	return out, nil
}

func diffPots(epoch uint64, live, expected model.Pots) []Mismatch {
	var out []Mismatch
	check := func(field string, a, b uint64) {
		if a != b {
			out = append(out, Mismatch{Epoch: epoch, Subject: "pots", Field: field, Expected: b, Actual: a})
		}
	}
	check("reserves", live.Reserves, expected.Reserves)
	check("treasury", live.Treasury, expected.Treasury)
	check("deposits", live.Deposits, expected.Deposits)
	check("donations", live.Donations, expected.Donations)
	return out
}

func parsePotsRow(row []string) (epoch, reserves, treasury, deposits, donations uint64, err error) {
	vals := make([]uint64, 5)
	for i := 0; i < 5; i++ {
		vals[i], err = strconv.ParseUint(row[i], 10, 64)
		if err != nil {
			return 0, 0, 0, 0, 0, err
		}
	}
	return vals[0], vals[1], vals[2], vals[3], vals[4], nil
}

func parseCredentialHex(s string) (model.Credential, error) {
	var cred model.Credential
	raw, err := hex.DecodeString(s)
	if err != nil {
		return cred, fmt.Errorf("invalid credential hex %q: %w", s, err)
	}
	if len(raw) != len(cred) {
		return cred, fmt.Errorf("credential hex %q: expected %d bytes, got %d", s, len(cred), len(raw))
	}
	copy(cred[:], raw)
	return cred, nil
}

func looksLikeHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.ParseUint(row[0], 10, 64)
	return err != nil
}
