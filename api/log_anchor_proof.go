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

// LogAnchorProof is a bundle's optional proof that its targets metadata
// was published to a transparency log: a signed checkpoint note, plus
// every leaf hash the log committed to under that checkpoint.
type LogAnchorProof struct {
	msg wire.Message
}

// NewCheckpoint returns the raw bytes of the signed checkpoint note.
func (p LogAnchorProof) NewCheckpoint() ([]byte, error) {
	iv, err := p.msg.Bytes(fieldLogAnchorProofNewCheckpoint)
	if err != nil {
		return nil, err
	}
	return iv.Bytes()
}

// LeafHashes returns every leaf hash the proof carries, in log order.
func (p LogAnchorProof) LeafHashes(maxCount int) ([][]byte, error) {
	ivs, err := p.msg.RepeatedBytes(fieldLogAnchorProofLeafHashes)
	if err != nil {
		return nil, err
	}
	if len(ivs) > maxCount {
		return nil, status.Wrap(status.ResourceExhausted, "proof carries %d leaf hashes, buffer holds %d", len(ivs), maxCount)
	}
	out := make([][]byte, len(ivs))
	for i, iv := range ivs {
		b, err := iv.Bytes()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// BuildLogAnchorProof encodes a LogAnchorProof message.
func BuildLogAnchorProof(newCheckpoint []byte, leafHashes [][]byte) *wire.Builder {
	b := wire.NewBuilder().PutBytes(fieldLogAnchorProofNewCheckpoint, newCheckpoint)
	for _, lh := range leafHashes {
		b.PutBytes(fieldLogAnchorProofLeafHashes, lh)
	}
	return b
}
