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
	"github.com/golang/glog"

	"github.com/usbarmory/armory-bundle-verify/api"
	"github.com/usbarmory/armory-bundle-verify/backend"
	"github.com/usbarmory/armory-bundle-verify/cryptoprim"
	"github.com/usbarmory/armory-bundle-verify/status"
	"github.com/usbarmory/armory-bundle-verify/wire"
)

// VerifyPayloads checks, for each target_file declared in
// targets, either verify its in-bundle payload bytes against the declared
// length and SHA-256, or — when personalization is enabled — verify it was
// already accepted once before, by checking the on-device manifest for a
// matching cached entry.
func VerifyPayloads(cfg Config, be backend.Backend, targets api.SignedTargetsMetadata, bundle api.UpdateBundle) error {
	tm, err := targets.TargetsMetadata()
	if err != nil {
		return err
	}
	files, err := tm.TargetFiles()
	if err != nil {
		return err
	}

	payloads, err := bundle.TargetPayloads(cfg.MaxTargetNameLength)
	if err != nil {
		return err
	}

	for _, tf := range files {
		name, err := tf.FileName(cfg.MaxTargetNameLength)
		if err != nil {
			if status.Is(err, status.ResourceExhausted) {
				return status.Wrap(status.OutOfRange, "target name exceeds %d bytes: %v", cfg.MaxTargetNameLength, err)
			}
			return err
		}
		length, err := tf.Length()
		if err != nil {
			return err
		}
		if length > cfg.MaxTargetPayloadSize {
			return status.Wrap(status.OutOfRange, "target %q declares length %d, exceeds maximum %d", name, length, cfg.MaxTargetPayloadSize)
		}
		hashIv, err := tf.SHA256()
		if err != nil {
			return err
		}
		expectedHash, err := hashIv.Bytes()
		if err != nil {
			return err
		}

		if iv, ok := payloads[name]; ok {
			if err := verifyInBundlePayload(name, iv, length, expectedHash); err != nil {
				return err
			}
			continue
		}

		if err := verifyOutOfBundlePayload(cfg, be, name, length, expectedHash); err != nil {
			return err
		}
	}
	return nil
}

func verifyInBundlePayload(name string, iv wire.Interval, length uint64, expectedHash []byte) error {
	if uint64(iv.Len()) != length {
		return status.Wrap(status.Unauthenticated, "target %q payload is %d bytes, declared length is %d", name, iv.Len(), length)
	}
	digest, err := cryptoprim.SHA256(iv.Reader())
	if err != nil {
		return err
	}
	if string(digest[:]) != string(expectedHash) {
		return status.Wrap(status.Unauthenticated, "target %q payload hash mismatch", name)
	}
	return nil
}

func verifyOutOfBundlePayload(cfg Config, be backend.Backend, name string, length uint64, expectedHash []byte) error {
	if !cfg.WithPersonalization {
		return status.Wrap(status.Unauthenticated, "target %q has no payload in bundle and personalization is disabled", name)
	}

	r, n, err := be.GetManifestReader()
	if err != nil {
		return status.Wrap(status.Unauthenticated, "target %q has no payload in bundle and no on-device manifest is available: %v", name, err)
	}
	deviceManifest := api.FromPersisted(r, n)
	cached, err := deviceManifest.TargetFile(name, cfg.MaxTargetNameLength)
	if err != nil {
		return status.Wrap(status.Unauthenticated, "target %q has no payload in bundle and no cached entry on device: %v", name, err)
	}

	cachedLength, err := cached.Length()
	if err != nil {
		return err
	}
	if cachedLength != length {
		return status.Wrap(status.Unauthenticated, "target %q cached length %d does not match declared length %d", name, cachedLength, length)
	}
	cachedHashIv, err := cached.SHA256()
	if err != nil {
		return err
	}
	cachedHash, err := cachedHashIv.Bytes()
	if err != nil {
		return err
	}
	if string(cachedHash) != string(expectedHash) {
		return status.Wrap(status.Unauthenticated, "target %q cached hash does not match declared hash", name)
	}

	glog.V(1).Infof("target %q verified via on-device manifest (personalized-out)", name)
	return nil
}
