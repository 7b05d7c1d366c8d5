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

// Package api defines the wire schema and typed, lazy views for the
// update-bundle data model: UpdateBundle, root and targets
// metadata, keys, signatures, and the on-device manifest. Every type here
// wraps a wire.Message or wire.Interval rather than owning decoded field
// values, so large payload bytes are never buffered whole.
package api

// Field numbers for the wire schema. These are this repository's own
// numbering (the design leaves the wire format itself out of scope), kept
// stable across the encoder (wire.Builder, used by tests and cmd/create_bundle)
// and the decoder (wire.Message accessors used throughout this package).
const (
	fieldUpdateBundleRootMetadata    = 1
	fieldUpdateBundleTargetsMetadata = 2
	fieldUpdateBundleTargetPayloads  = 3
	fieldUpdateBundleLogAnchorProof  = 4

	fieldLogAnchorProofNewCheckpoint = 1
	fieldLogAnchorProofLeafHashes    = 2

	fieldMapEntryKey   = 1
	fieldMapEntryValue = 2

	fieldSignedRootMetadataSerialized = 1
	fieldSignedRootMetadataSignatures = 2

	fieldRootMetadataCommonMetadata             = 1
	fieldRootMetadataKeys                       = 2
	fieldRootMetadataRootSignatureRequirement   = 3
	fieldRootMetadataTargetsSignatureRequirement = 4

	fieldCommonMetadataVersion = 1

	fieldKeyKeyval = 1

	fieldSignatureRequirementThreshold = 1
	fieldSignatureRequirementKeyIDs    = 2

	fieldSignatureKeyID = 1
	fieldSignatureSig   = 2

	fieldSignedTargetsMetadataSerialized = 1
	fieldSignedTargetsMetadataSignatures = 2

	fieldTargetsMetadataCommonMetadata = 1
	fieldTargetsMetadataTargetFiles    = 2

	fieldTargetFileFileName = 1
	fieldTargetFileLength   = 2
	fieldTargetFileHashes   = 3

	fieldHashFunction = 1
	fieldHashHash      = 2

	fieldManifestVersion     = 1
	fieldManifestTargetFiles = 2
)

// HashFunction identifies the digest algorithm named by a Hash entry.
type HashFunction uint32

// SHA256 is the only hash function this verifier recognizes.
const SHA256 HashFunction = 1

// KeyIDSize, KeyValueSize, and SignatureSize mirror the data model's invariants:
// key ids and signature key ids are 32 bytes, key values are 65 bytes
// (uncompressed P-256), and signatures are 64 bytes.
const (
	KeyIDSize     = 32
	KeyValueSize  = 65
	SignatureSize = 64
)
