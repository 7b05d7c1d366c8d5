// Copyright 2026 The Project Authors. All Rights Reserved.
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

// Package status defines the small set of error kinds used throughout the
// bundle verifier. Rather than a family of concrete error types, each kind
// is a sentinel value suitable for errors.Is, and Wrap attaches context the
// same way the rest of the codebase wraps errors with fmt.Errorf's %w.
package status

import (
	"errors"
	"fmt"
)

// Sentinel kinds. A returned error may be tested with errors.Is(err, status.Unauthenticated)
// regardless of how much context has been wrapped around it.
var (
	// NotFound means an expected field, map entry, or persisted object is absent.
	// During self-verification this is used to distinguish an unsigned bundle
	// from a malformed one.
	NotFound = errors.New("not found")

	// Unauthenticated means a signature, threshold, anti-rollback, hash, or
	// length check failed.
	Unauthenticated = errors.New("unauthenticated")

	// OutOfRange means a name or length exceeded a configured maximum.
	OutOfRange = errors.New("out of range")

	// FailedPrecondition means an accessor was used before a successful verification.
	FailedPrecondition = errors.New("failed precondition")

	// Internal means the decoder produced a buffer-size mismatch or other
	// condition that indicates corrupt encoding rather than a policy failure.
	Internal = errors.New("internal")

	// ResourceExhausted means a string did not fit in a caller-provided buffer.
	ResourceExhausted = errors.New("resource exhausted")

	// Decode means the byte format is invalid or a required field is missing
	// at the wire level.
	Decode = errors.New("decode error")
)

// Wrap attaches additional context to kind, preserving it for errors.Is.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, kind)...)
}

// Is reports whether err is (or wraps) kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
