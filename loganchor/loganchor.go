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

package loganchor

import (
	"bytes"
	"fmt"

	"github.com/transparency-dev/merkle/compact"
	"github.com/transparency-dev/merkle/rfc6962"
	"golang.org/x/mod/sumdb/note"
)

// Proof is the evidence a bundle carries (or a caller fetches separately)
// to prove its targets metadata was published to the log: a freshly
// issued, signed Checkpoint, plus every leaf hash the log has committed to
// under that checkpoint.
type Proof struct {
	// NewCheckpoint is a signed note wrapping the log's current Checkpoint.
	NewCheckpoint []byte

	// LeafHashes holds every leaf hash the log has accumulated, in log
	// order, up to NewCheckpoint's size.
	LeafHashes [][]byte
}

// Verifier checks log anchoring proofs against a known log signing key.
type Verifier struct {
	logSigV note.Verifier
}

// NewVerifier parses logSignerKey (a sumdb/note verifier key string) and
// returns a Verifier that trusts checkpoints signed by it.
func NewVerifier(logSignerKey string) (*Verifier, error) {
	v, err := note.NewVerifier(logSignerKey)
	if err != nil {
		return nil, fmt.Errorf("parse log signer key: %w", err)
	}
	return &Verifier{logSigV: v}, nil
}

// VerifyAnchored checks that targetsMetadataHash is a leaf of the log
// described by proof, that proof's checkpoint is properly signed, and
// that it is consistent with trusted (the last checkpoint this caller
// observed — a zero-value Checkpoint accepts any checkpoint, for first
// use). It returns the new checkpoint on success, so the caller can
// persist it as the trusted checkpoint for next time.
func (v *Verifier) VerifyAnchored(targetsMetadataHash []byte, proof Proof, trusted Checkpoint) (Checkpoint, error) {
	signedNote, err := note.Open(proof.NewCheckpoint, note.VerifierList(v.logSigV))
	if err != nil {
		return Checkpoint{}, fmt.Errorf("verify checkpoint signature: %w", err)
	}
	var newCP Checkpoint
	if err := newCP.Unmarshal([]byte(signedNote.Text)); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}

	if l := uint64(len(proof.LeafHashes)); l != newCP.Size {
		return Checkpoint{}, fmt.Errorf("proof carries %d leaf hashes for a checkpoint of size %d", l, newCP.Size)
	}

	hasher := rfc6962.DefaultHasher
	leafHash := hasher.HashLeaf(targetsMetadataHash)
	tree := (&compact.RangeFactory{Hash: hasher.HashChildren}).NewEmptyRange(0)

	var leafFound, trustedFound, newFound bool
	for i, lh := range proof.LeafHashes {
		if err := tree.Append(lh, nil); err != nil {
			return Checkpoint{}, fmt.Errorf("append leaf %d: %w", i, err)
		}
		root, err := tree.GetRootHash(nil)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("compute root after leaf %d: %w", i, err)
		}
		if !leafFound && bytes.Equal(lh, leafHash) {
			leafFound = true
		}
		if tree.End() == trusted.Size {
			trustedFound = bytes.Equal(root, trusted.Hash)
		}
		if tree.End() == newCP.Size {
			newFound = bytes.Equal(root, newCP.Hash)
		}
	}

	if trusted.Size > 0 && !trustedFound {
		return Checkpoint{}, fmt.Errorf("log is not consistent with previously observed checkpoint (size %d, hash %x)", trusted.Size, trusted.Hash)
	}
	if !newFound {
		return Checkpoint{}, fmt.Errorf("unable to reconstruct new checkpoint root %x from leaf hashes", newCP.Hash)
	}
	if !leafFound {
		return Checkpoint{}, fmt.Errorf("targets metadata hash %x is not among the log's leaves", targetsMetadataHash)
	}

	return newCP, nil
}
