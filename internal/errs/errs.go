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

// Package errs wraps the error taxonomy from spec §7 around plain
// sentinel errors, the way the teacher's ledger.ErrNotFound does.
package errs

import "errors"

// Sentinel errors identifying the taxonomy class of a wrapped error.
// Use errors.Is against these after wrapping with Decode/Invariant/
// Validation/IO below.
var (
	// ErrDecode marks a malformed-CBOR or unknown-era decode failure.
	// The offending transaction is dropped; the block continues.
	ErrDecode = errors.New("acropolis: decode error")

	// ErrInvariant marks a fatal inconsistency (double-spend, deposit
	// underflow, negative reward balance, missing parent action).
	// Replay must abort.
	ErrInvariant = errors.New("acropolis: invariant violation")

	// ErrValidation marks a per-transaction validation failure. The
	// transaction is dropped; the block continues.
	ErrValidation = errors.New("acropolis: validation failure")

	// ErrIO marks an external I/O failure (snapshot download, peer
	// disconnect), retried by the source component.
	ErrIO = errors.New("acropolis: io error")

	// ErrNotFound is returned when a requested item is absent.
	ErrNotFound = errors.New("acropolis: not found")
)

// Decode wraps err as a decode-class error.
func Decode(err error) error { return wrap(ErrDecode, err) }

// Invariant wraps err as a fatal invariant-violation error.
func Invariant(err error) error { return wrap(ErrInvariant, err) }

// Validation wraps err as a per-transaction validation error.
func Validation(err error) error { return wrap(ErrValidation, err) }

// IO wraps err as an external I/O error.
func IO(err error) error { return wrap(ErrIO, err) }

func wrap(class, err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: class, err: err}
}

type classified struct {
	class error
	err   error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() []error { return []error{c.class, c.err} }
