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

// Package loganchor adds an optional additional trust requirement on top
// of the core bundle verifier: that the targets metadata a device is about
// to accept was published to an append-only transparency log, and that the
// log's current state is consistent with the last state the device
// observed. This catches a compromised-but-correctly-signed bundle that
// was never made publicly discoverable — split-view or targeted attacks
// that never touch the public log.
//
// Anchoring is entirely optional: verify.Config.LogAnchor is nil by
// default, and nothing in the core verification pipeline requires it.
package loganchor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
)

// Checkpoint is a minimal signed commitment to the size and root hash of a
// transparency log at some point in time.
type Checkpoint struct {
	// Origin identifies the log that issued this checkpoint.
	Origin string
	// Size is the number of leaves committed to by Hash.
	Size uint64
	// Hash is the Merkle root hash over the first Size leaves.
	Hash []byte
}

// Unmarshal parses the three-line checkpoint body note.Open returns once a
// signature has verified:
//   - origin string
//   - decimal leaf count
//   - base64 root hash
//
// with no trailing data after the hash line.
func (c *Checkpoint) Unmarshal(data []byte) error {
	parts := bytes.SplitN(data, []byte("\n"), 4)
	if len(parts) < 4 {
		return errors.New("malformed checkpoint: too few lines")
	}
	origin := string(parts[0])
	if origin == "" {
		return errors.New("malformed checkpoint: empty origin")
	}
	size, err := strconv.ParseUint(string(parts[1]), 10, 64)
	if err != nil {
		return fmt.Errorf("malformed checkpoint: invalid size: %w", err)
	}
	hash, err := base64.StdEncoding.DecodeString(string(parts[2]))
	if err != nil {
		return fmt.Errorf("malformed checkpoint: invalid hash: %w", err)
	}
	if trailing := len(parts[3]); trailing > 0 {
		return fmt.Errorf("malformed checkpoint: %d bytes of unexpected trailing data", trailing)
	}
	*c = Checkpoint{Origin: origin, Size: size, Hash: hash}
	return nil
}

// Marshal renders c back into the three-line body Unmarshal parses. It is
// used to persist a verified checkpoint in its plain, unsigned form: once
// VerifyAnchored has checked the note signature, there is no need to keep
// carrying it around.
func (c Checkpoint) Marshal() []byte {
	return []byte(fmt.Sprintf("%s\n%d\n%s\n", c.Origin, c.Size, base64.StdEncoding.EncodeToString(c.Hash)))
}
