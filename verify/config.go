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

// Package verify implements the verification pipeline a BundleAccessor
// runs over an update bundle: root upgrade, targets metadata, and payload
// checks, each built on the api package's wire views and the cryptoprim
// primitives.
package verify

import "github.com/usbarmory/armory-bundle-verify/loganchor"

// Config carries the verifier's compile-time constants, plus the
// optional transparency-log anchor. There is deliberately no "network
// timeout" knob here: nothing in this package performs network I/O.
type Config struct {
	// MaxTargetNameLength bounds the size of a target_file.file_name
	// field; names that don't fit are rejected with OutOfRange.
	MaxTargetNameLength int

	// MaxTargetPayloadSize bounds the declared length field of a
	// target_file; a longer declared length is rejected with OutOfRange
	// before any bytes are read.
	MaxTargetPayloadSize uint64

	// DisableBundleVerification enables self-verify mode: the bundle's own
	// incoming root is taken as the trusted root instead of the one the
	// backend persisted. The incoming root's signature and version checks
	// still run (against itself), and targets metadata is still checked
	// against that root's targets signature requirement. Unsigned targets
	// metadata is accepted, and the targets anti-rollback check against the
	// on-device manifest is skipped. A bundle with no incoming root has its
	// targets metadata accepted without checks. Development only — never
	// set this in a production build.
	DisableBundleVerification bool

	// WithPersonalization enables the out-of-bundle verification path: a
	// target_file entry with no payload in the bundle is checked against
	// a matching entry in the on-device manifest instead of failing
	// outright.
	WithPersonalization bool

	// LogAnchor, if non-nil, is consulted after targets metadata
	// verifies to additionally require the targets metadata's hash to
	// appear in a transparency log the caller trusts. This is an addition
	// beyond the core trust model: by default no bundle requires log
	// anchoring, and a nil LogAnchor (the zero value) disables it
	// entirely.
	LogAnchor *loganchor.Verifier
}
