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

package verify

import (
	"bytes"

	"github.com/golang/glog"

	"github.com/usbarmory/armory-bundle-verify/api"
	"github.com/usbarmory/armory-bundle-verify/backend"
	"github.com/usbarmory/armory-bundle-verify/cryptoprim"
	"github.com/usbarmory/armory-bundle-verify/loganchor"
	"github.com/usbarmory/armory-bundle-verify/status"
)

// maxAnchorLeafHashes bounds how many leaf hashes a single anchor proof
// may carry, so a malicious bundle can't force an unbounded Merkle replay.
const maxAnchorLeafHashes = 1 << 20

// VerifyLogAnchor implements the loganchor addition: when cfg.LogAnchor is
// configured, require the bundle to carry a LogAnchorProof showing
// targets' serialized metadata was published to the transparency log, and
// that the log's new checkpoint is consistent with whatever checkpoint
// this device last trusted. A nil cfg.LogAnchor makes this a no-op,
// leaving every bundle that satisfies the base trust model accepted
// exactly as before.
func VerifyLogAnchor(cfg Config, be backend.Backend, targets api.SignedTargetsMetadata, bundle api.UpdateBundle) error {
	if cfg.LogAnchor == nil {
		return nil
	}

	message, err := targets.SerializedTargetsMetadata()
	if err != nil {
		return err
	}
	digest, err := cryptoprim.SHA256(message.Reader())
	if err != nil {
		return err
	}

	proof, err := bundle.LogAnchorProof()
	if err != nil {
		return status.Wrap(status.Unauthenticated, "log anchoring is required but bundle carries no anchor proof: %v", err)
	}
	newCheckpoint, err := proof.NewCheckpoint()
	if err != nil {
		return err
	}
	leafHashes, err := proof.LeafHashes(maxAnchorLeafHashes)
	if err != nil {
		return err
	}

	trusted, err := loadTrustedCheckpoint(be)
	if err != nil {
		return err
	}

	newCP, err := cfg.LogAnchor.VerifyAnchored(digest[:], loganchor.Proof{NewCheckpoint: newCheckpoint, LeafHashes: leafHashes}, trusted)
	if err != nil {
		return status.Wrap(status.Unauthenticated, "log anchor verification failed: %v", err)
	}

	if err := be.SafelyPersistCheckpoint(bytes.NewReader(newCP.Marshal())); err != nil {
		return status.Wrap(status.Internal, "persist new trusted checkpoint: %v", err)
	}
	glog.V(1).Infof("log anchor verified, trusted checkpoint advanced to size %d", newCP.Size)
	return nil
}

func loadTrustedCheckpoint(be backend.Backend) (loganchor.Checkpoint, error) {
	r, n, err := be.GetTrustedCheckpointReader()
	if status.Is(err, status.NotFound) {
		glog.Infof("no trusted checkpoint persisted yet, accepting the bundle's checkpoint unconditionally (first-ever anchor check)")
		return loganchor.Checkpoint{}, nil
	}
	if err != nil {
		return loganchor.Checkpoint{}, status.Wrap(status.Internal, "load trusted checkpoint: %v", err)
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return loganchor.Checkpoint{}, status.Wrap(status.Internal, "read trusted checkpoint: %v", err)
	}
	var cp loganchor.Checkpoint
	if err := cp.Unmarshal(buf); err != nil {
		return loganchor.Checkpoint{}, status.Wrap(status.Internal, "unmarshal trusted checkpoint: %v", err)
	}
	return cp, nil
}

