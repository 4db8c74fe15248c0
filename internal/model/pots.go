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

package model

// Pots holds the per-epoch, monotone-within-an-epoch accounting
// buckets from spec §3: reserves, treasury, deposits-stake and
// donations. Total supply (reserves + treasury + circulating +
// deposits) is constant modulo fee burn and donations.
type Pots struct {
	Reserves  uint64
	Treasury  uint64
	Deposits  uint64
	Donations uint64
}

// DRep tracks one registered delegated representative's deposit and
// activity expiry.
type DRep struct {
	Credential  Credential
	Deposit     uint64
	AnchorURL   string
	AnchorHash  []byte
	Expiry      uint64
}
