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
	"github.com/usbarmory/armory-bundle-verify/wire"
)

// TopLevelTargetsName is the map key under which the current release's
// targets metadata is stored within UpdateBundle.targets_metadata.
const TopLevelTargetsName = "targets"

// UpdateBundle is the top-level container: { root_metadata?,
// targets_metadata: map<string, SignedTargetsMetadata>, target_payloads:
// map<string, bytes> }.
type UpdateBundle struct {
	msg wire.Message
}

// Open binds an UpdateBundle view to the first limit bytes of r. This is
// BundleAccessor.OpenAndVerify's call into the decoder.
func Open(r wire.Stream, limit int64) UpdateBundle {
	return UpdateBundle{msg: wire.Open(r, limit)}
}

// RootMetadata returns the bundle's incoming root metadata, or
// status.NotFound if the bundle carries none. Root rotation treats that
// NotFound as "bundle may legitimately omit root", not as a failure.
func (u UpdateBundle) RootMetadata() (SignedRootMetadata, error) {
	m, err := u.msg.SubMessage(fieldUpdateBundleRootMetadata)
	if err != nil {
		return SignedRootMetadata{}, err
	}
	return NewSignedRootMetadata(m), nil
}

// TargetsMetadataMap returns the name -> SignedTargetsMetadata mapping.
func (u UpdateBundle) TargetsMetadataMap() (map[string]SignedTargetsMetadata, error) {
	entries, err := u.msg.StringKeyedSubMessages(fieldUpdateBundleTargetsMetadata, fieldMapEntryKey, fieldMapEntryValue, 256)
	if err != nil {
		return nil, err
	}
	out := make(map[string]SignedTargetsMetadata, len(entries))
	for name, m := range entries {
		out[name] = NewSignedTargetsMetadata(m)
	}
	return out, nil
}

// TargetPayloads returns the name -> payload-bytes mapping. Values are
// lazy Intervals; callers must stream them, never call Interval.Bytes on a
// target payload.
func (u UpdateBundle) TargetPayloads(maxNameLen int) (map[string]wire.Interval, error) {
	return u.msg.StringKeyedBytes(fieldUpdateBundleTargetPayloads, fieldMapEntryKey, fieldMapEntryValue, maxNameLen)
}

// LogAnchorProof returns the bundle's transparency-log anchor proof, or
// status.NotFound if the bundle carries none. Anchoring is an optional
// addition on top of the base trust model, consulted only when a
// verify.Config carries a non-nil LogAnchor.
func (u UpdateBundle) LogAnchorProof() (LogAnchorProof, error) {
	m, err := u.msg.SubMessage(fieldUpdateBundleLogAnchorProof)
	if err != nil {
		return LogAnchorProof{}, err
	}
	return LogAnchorProof{msg: m}, nil
}

// --- encoding helpers ---

// BuildUpdateBundle encodes a full UpdateBundle message. Any of
// signedRootMetadata, targetsMetadata, payloads, or anchorProof may be
// nil/empty.
func BuildUpdateBundle(signedRootMetadata *wire.Builder, targetsMetadata map[string]*wire.Builder, payloads map[string][]byte, anchorProof *wire.Builder) *wire.Builder {
	b := wire.NewBuilder()
	if signedRootMetadata != nil {
		b.PutMessage(fieldUpdateBundleRootMetadata, signedRootMetadata)
	}
	for name, m := range targetsMetadata {
		b.PutStringKeyedMessage(fieldUpdateBundleTargetsMetadata, fieldMapEntryKey, fieldMapEntryValue, name, m)
	}
	for name, data := range payloads {
		b.PutStringKeyedBytes(fieldUpdateBundleTargetPayloads, fieldMapEntryKey, fieldMapEntryValue, name, data)
	}
	if anchorProof != nil {
		b.PutMessage(fieldUpdateBundleLogAnchorProof, anchorProof)
	}
	return b
}
