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

// Key wraps a single entry of a root's key map: { keyval: 65B uncompressed
// P-256 public key }. The key_id used to look up a Key is assumed
// to equal SHA256(key type ∥ key scheme ∥ key value); this package never
// recomputes it.
type Key struct {
	msg wire.Message
}

func newKey(m wire.Message) Key { return Key{msg: m} }

// Keyval returns the 65-byte uncompressed public key.
func (k Key) Keyval() (wire.Interval, error) {
	iv, err := k.msg.Bytes(fieldKeyKeyval)
	if err != nil {
		return wire.Interval{}, err
	}
	if iv.Len() != KeyValueSize {
		return wire.Interval{}, status.Wrap(status.Internal, "key value is %d bytes, want %d", iv.Len(), KeyValueSize)
	}
	return iv, nil
}

// KeyMap is the key_id -> Key mapping read from a root's "keys" field.
type KeyMap map[string]Key

// SignatureRequirement is { threshold, key_ids }.
type SignatureRequirement struct {
	msg wire.Message
}

func newSignatureRequirement(m wire.Message) SignatureRequirement { return SignatureRequirement{msg: m} }

// Threshold returns the minimum number of distinct verified signatures required.
func (r SignatureRequirement) Threshold() (uint32, error) {
	return r.msg.Uint32(fieldSignatureRequirementThreshold)
}

// AllowedKeyIDs returns the key ids permitted to satisfy this requirement.
func (r SignatureRequirement) AllowedKeyIDs() ([]wire.Interval, error) {
	ids, err := r.msg.RepeatedBytes(fieldSignatureRequirementKeyIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id.Len() != KeyIDSize {
			return nil, status.Wrap(status.Internal, "allowed key id is %d bytes, want %d", id.Len(), KeyIDSize)
		}
	}
	return ids, nil
}

// Signature is { key_id: 32B, sig: 64B }.
type Signature struct {
	msg wire.Message
}

func newSignature(m wire.Message) Signature { return Signature{msg: m} }

// KeyID returns the 32-byte signer key id.
func (s Signature) KeyID() ([KeyIDSize]byte, error) {
	iv, err := s.msg.Bytes(fieldSignatureKeyID)
	if err != nil {
		return [KeyIDSize]byte{}, err
	}
	var out [KeyIDSize]byte
	if err := iv.ReadExact(out[:]); err != nil {
		return [KeyIDSize]byte{}, err
	}
	return out, nil
}

// Sig returns the 64-byte raw r||s signature.
func (s Signature) Sig() ([SignatureSize]byte, error) {
	iv, err := s.msg.Bytes(fieldSignatureSig)
	if err != nil {
		return [SignatureSize]byte{}, err
	}
	var out [SignatureSize]byte
	if err := iv.ReadExact(out[:]); err != nil {
		return [SignatureSize]byte{}, err
	}
	return out, nil
}

// --- encoding helpers, used by tests and cmd/create_bundle ---

// BuildKey encodes a Key message.
func BuildKey(keyval []byte) *wire.Builder {
	return wire.NewBuilder().PutBytes(fieldKeyKeyval, keyval)
}

// BuildSignatureRequirement encodes a SignatureRequirement message.
func BuildSignatureRequirement(threshold uint32, allowedKeyIDs [][]byte) *wire.Builder {
	b := wire.NewBuilder().PutUint32(fieldSignatureRequirementThreshold, threshold)
	for _, id := range allowedKeyIDs {
		b.PutBytes(fieldSignatureRequirementKeyIDs, id)
	}
	return b
}

// BuildSignature encodes a Signature message.
func BuildSignature(keyID, sig []byte) *wire.Builder {
	return wire.NewBuilder().PutBytes(fieldSignatureKeyID, keyID).PutBytes(fieldSignatureSig, sig)
}
