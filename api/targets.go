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

// SignedTargetsMetadata mirrors SignedRootMetadata: a verbatim serialized
// byte interval plus the signatures covering it.
type SignedTargetsMetadata struct {
	msg wire.Message
}

// NewSignedTargetsMetadata wraps a decoded message as a SignedTargetsMetadata view.
func NewSignedTargetsMetadata(m wire.Message) SignedTargetsMetadata {
	return SignedTargetsMetadata{msg: m}
}

// Interval returns the verbatim bytes of the whole SignedTargetsMetadata message.
func (s SignedTargetsMetadata) Interval() wire.Interval {
	return s.msg.Interval()
}

// SerializedTargetsMetadata returns the verbatim signed-over byte interval.
func (s SignedTargetsMetadata) SerializedTargetsMetadata() (wire.Interval, error) {
	return s.msg.Bytes(fieldSignedTargetsMetadataSerialized)
}

// TargetsMetadata decodes SerializedTargetsMetadata as a TargetsMetadata message.
func (s SignedTargetsMetadata) TargetsMetadata() (TargetsMetadata, error) {
	m, err := s.msg.SubMessage(fieldSignedTargetsMetadataSerialized)
	if err != nil {
		return TargetsMetadata{}, err
	}
	return TargetsMetadata{msg: m}, nil
}

// Signatures returns the repeated Signature list.
func (s SignedTargetsMetadata) Signatures() ([]Signature, error) {
	msgs, err := s.msg.RepeatedSubMessages(fieldSignedTargetsMetadataSignatures)
	if err != nil {
		return nil, err
	}
	out := make([]Signature, len(msgs))
	for i, m := range msgs {
		out[i] = newSignature(m)
	}
	return out, nil
}

// TargetsMetadata is { common_metadata: {version}, target_files: repeated TargetFile }.
type TargetsMetadata struct {
	msg wire.Message
}

// Version returns common_metadata.version.
func (t TargetsMetadata) Version() (uint32, error) {
	cm, err := t.msg.SubMessage(fieldTargetsMetadataCommonMetadata)
	if err != nil {
		return 0, err
	}
	return cm.Uint32(fieldCommonMetadataVersion)
}

// TargetFiles returns the repeated TargetFile list.
func (t TargetsMetadata) TargetFiles() ([]TargetFile, error) {
	msgs, err := t.msg.RepeatedSubMessages(fieldTargetsMetadataTargetFiles)
	if err != nil {
		return nil, err
	}
	out := make([]TargetFile, len(msgs))
	for i, m := range msgs {
		out[i] = TargetFile{msg: m}
	}
	return out, nil
}

// TargetFile is { file_name: string, length: u64, hashes: repeated Hash }.
type TargetFile struct {
	msg wire.Message
}

// FileName returns the target's name, bounded by maxNameLen
// (MAX_TARGET_NAME_LENGTH); names that don't fit yield ResourceExhausted.
func (t TargetFile) FileName(maxNameLen int) (string, error) {
	return t.msg.String(fieldTargetFileFileName, maxNameLen)
}

// Length returns the declared payload length.
func (t TargetFile) Length() (uint64, error) {
	return t.msg.Uint64(fieldTargetFileLength)
}

// SHA256 returns the SHA-256 Hash entry, or status.NotFound if the target
// file lists no SHA256 hash entry.
func (t TargetFile) SHA256() (wire.Interval, error) {
	hashes, err := t.msg.RepeatedSubMessages(fieldTargetFileHashes)
	if err != nil {
		return wire.Interval{}, err
	}
	for _, h := range hashes {
		fn, err := h.Uint32(fieldHashFunction)
		if err != nil {
			return wire.Interval{}, err
		}
		if HashFunction(fn) != SHA256 {
			continue
		}
		return h.Bytes(fieldHashHash)
	}
	return wire.Interval{}, status.Wrap(status.NotFound, "target file has no SHA256 hash entry")
}

// --- encoding helpers ---

// BuildHash encodes a Hash message.
func BuildHash(function HashFunction, hash []byte) *wire.Builder {
	return wire.NewBuilder().PutUint32(fieldHashFunction, uint32(function)).PutBytes(fieldHashHash, hash)
}

// BuildTargetFile encodes a TargetFile message.
func BuildTargetFile(name string, length uint64, sha256 []byte) *wire.Builder {
	return BuildTargetFileWithHashes(name, length, []*wire.Builder{BuildHash(SHA256, sha256)})
}

// BuildTargetFileWithHashes encodes a TargetFile message with an arbitrary
// hashes list, letting tests build a target file that carries no SHA256
// entry (or a non-SHA256 one) to exercise that lookup failure.
func BuildTargetFileWithHashes(name string, length uint64, hashes []*wire.Builder) *wire.Builder {
	b := wire.NewBuilder().
		PutString(fieldTargetFileFileName, name).
		PutUint64(fieldTargetFileLength, length)
	for _, h := range hashes {
		b.PutMessage(fieldTargetFileHashes, h)
	}
	return b
}

// BuildTargetsMetadata encodes a TargetsMetadata message.
func BuildTargetsMetadata(version uint32, files []*wire.Builder) *wire.Builder {
	b := wire.NewBuilder().PutMessage(fieldTargetsMetadataCommonMetadata, BuildCommonMetadata(version))
	for _, f := range files {
		b.PutMessage(fieldTargetsMetadataTargetFiles, f)
	}
	return b
}

// BuildSignedTargetsMetadata encodes a SignedTargetsMetadata message.
func BuildSignedTargetsMetadata(serializedTargetsMetadata []byte, sigs []*wire.Builder) *wire.Builder {
	b := wire.NewBuilder().PutBytes(fieldSignedTargetsMetadataSerialized, serializedTargetsMetadata)
	for _, s := range sigs {
		b.PutMessage(fieldSignedTargetsMetadataSignatures, s)
	}
	return b
}
