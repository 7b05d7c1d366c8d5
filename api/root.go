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

package api

import (
	"github.com/usbarmory/armory-bundle-verify/status"
	"github.com/usbarmory/armory-bundle-verify/wire"
)

// SignedRootMetadata is { serialized_root_metadata: bytes, signatures:
// repeated Signature }. The signed payload is the raw bytes of
// serialized_root_metadata exactly as they appear in the stream; nothing in
// this type ever re-encodes them.
type SignedRootMetadata struct {
	msg wire.Message
}

// NewSignedRootMetadata wraps a decoded message as a SignedRootMetadata view.
func NewSignedRootMetadata(m wire.Message) SignedRootMetadata {
	return SignedRootMetadata{msg: m}
}

// Interval returns the verbatim bytes of the whole SignedRootMetadata
// message, exactly as they appear in its source stream. Used when
// persisting an incoming root unchanged, without re-encoding it.
func (s SignedRootMetadata) Interval() wire.Interval {
	return s.msg.Interval()
}

// SerializedRootMetadata returns the verbatim signed-over byte interval.
func (s SignedRootMetadata) SerializedRootMetadata() (wire.Interval, error) {
	return s.msg.Bytes(fieldSignedRootMetadataSerialized)
}

// RootMetadata decodes SerializedRootMetadata as a RootMetadata message.
func (s SignedRootMetadata) RootMetadata() (RootMetadata, error) {
	m, err := s.msg.SubMessage(fieldSignedRootMetadataSerialized)
	if err != nil {
		return RootMetadata{}, err
	}
	return RootMetadata{msg: m}, nil
}

// Signatures returns the repeated Signature list.
func (s SignedRootMetadata) Signatures() ([]Signature, error) {
	msgs, err := s.msg.RepeatedSubMessages(fieldSignedRootMetadataSignatures)
	if err != nil {
		return nil, err
	}
	out := make([]Signature, len(msgs))
	for i, m := range msgs {
		out[i] = newSignature(m)
	}
	return out, nil
}

// RootMetadata is { common_metadata: {version}, keys: map<string, Key>,
// root_signature_requirement, targets_signature_requirement }.
type RootMetadata struct {
	msg wire.Message
}

// Version returns common_metadata.version.
func (r RootMetadata) Version() (uint32, error) {
	cm, err := r.msg.SubMessage(fieldRootMetadataCommonMetadata)
	if err != nil {
		return 0, err
	}
	return cm.Uint32(fieldCommonMetadataVersion)
}

// Keys returns the key_id -> Key mapping.
func (r RootMetadata) Keys() (KeyMap, error) {
	entries, err := r.msg.StringKeyedSubMessages(fieldRootMetadataKeys, fieldMapEntryKey, fieldMapEntryValue, KeyIDSize)
	if err != nil {
		return nil, err
	}
	out := make(KeyMap, len(entries))
	for id, m := range entries {
		if len(id) != KeyIDSize {
			return nil, status.Wrap(status.Internal, "key map entry id is %d bytes, want %d", len(id), KeyIDSize)
		}
		out[id] = newKey(m)
	}
	return out, nil
}

// RootSignatureRequirement returns the requirement that governs future root upgrades.
func (r RootMetadata) RootSignatureRequirement() (SignatureRequirement, error) {
	m, err := r.msg.SubMessage(fieldRootMetadataRootSignatureRequirement)
	if err != nil {
		return SignatureRequirement{}, err
	}
	return newSignatureRequirement(m), nil
}

// TargetsSignatureRequirement returns the requirement that governs targets metadata.
func (r RootMetadata) TargetsSignatureRequirement() (SignatureRequirement, error) {
	m, err := r.msg.SubMessage(fieldRootMetadataTargetsSignatureRequirement)
	if err != nil {
		return SignatureRequirement{}, err
	}
	return newSignatureRequirement(m), nil
}

// --- encoding helpers ---

// BuildCommonMetadata encodes a CommonMetadata message.
func BuildCommonMetadata(version uint32) *wire.Builder {
	return wire.NewBuilder().PutUint32(fieldCommonMetadataVersion, version)
}

// BuildRootMetadata encodes a RootMetadata message.
func BuildRootMetadata(version uint32, keys map[string][]byte, rootReq, targetsReq *wire.Builder) *wire.Builder {
	b := wire.NewBuilder().PutMessage(fieldRootMetadataCommonMetadata, BuildCommonMetadata(version))
	for keyID, keyval := range keys {
		b.PutStringKeyedMessage(fieldRootMetadataKeys, fieldMapEntryKey, fieldMapEntryValue, keyID, BuildKey(keyval))
	}
	b.PutMessage(fieldRootMetadataRootSignatureRequirement, rootReq)
	b.PutMessage(fieldRootMetadataTargetsSignatureRequirement, targetsReq)
	return b
}

// BuildSignedRootMetadata encodes a SignedRootMetadata message, wrapping an
// already-serialized RootMetadata so that the caller controls the exact
// signed-over bytes.
func BuildSignedRootMetadata(serializedRootMetadata []byte, sigs []*wire.Builder) *wire.Builder {
	b := wire.NewBuilder().PutBytes(fieldSignedRootMetadataSerialized, serializedRootMetadata)
	for _, s := range sigs {
		b.PutMessage(fieldSignedRootMetadataSignatures, s)
	}
	return b
}
