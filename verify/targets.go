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
	"github.com/usbarmory/armory-bundle-verify/status"
)

// VerifyTargets locates the bundle's top-level targets
// metadata, check its signatures against the trusted root's targets
// signature requirement, and enforce anti-rollback against the on-device
// manifest's version.
//
// Returns the verified SignedTargetsMetadata on success so PayloadVerifier
// can read target_files from it without re-decoding the bundle.
func VerifyTargets(cfg Config, be backend.Backend, upgrader *RootUpgrader, bundle api.UpdateBundle) (api.SignedTargetsMetadata, error) {
	metas, err := bundle.TargetsMetadataMap()
	if err != nil {
		return api.SignedTargetsMetadata{}, err
	}
	top, ok := metas[api.TopLevelTargetsName]
	if !ok {
		return api.SignedTargetsMetadata{}, status.Wrap(status.NotFound, "bundle has no %q targets metadata", api.TopLevelTargetsName)
	}

	if upgrader.SelfVerifying() && upgrader.TrustedRoot() == (api.SignedRootMetadata{}) {
		glog.Warning("self-verify: no trusted root available, accepting targets metadata without checks")
		return top, nil
	}

	trustedRM, err := upgrader.TrustedRoot().RootMetadata()
	if err != nil {
		return api.SignedTargetsMetadata{}, err
	}
	keys, err := trustedRM.Keys()
	if err != nil {
		return api.SignedTargetsMetadata{}, err
	}
	req, err := trustedRM.TargetsSignatureRequirement()
	if err != nil {
		return api.SignedTargetsMetadata{}, err
	}

	message, err := top.SerializedTargetsMetadata()
	if err != nil {
		return api.SignedTargetsMetadata{}, err
	}
	sigs, err := top.Signatures()
	if err != nil {
		return api.SignedTargetsMetadata{}, err
	}

	if err := VerifySignatures(message, sigs, req, keys); err != nil {
		if upgrader.SelfVerifying() && status.Is(err, status.NotFound) {
			glog.Warning("self-verify: targets metadata is unsigned, accepting anyway")
			return top, nil
		}
		return api.SignedTargetsMetadata{}, status.Wrap(status.Unauthenticated, "targets metadata signature check failed: %v", err)
	}

	if err := checkTargetsAntiRollback(cfg, be, upgrader, top); err != nil {
		return api.SignedTargetsMetadata{}, err
	}

	return top, nil
}

func checkTargetsAntiRollback(cfg Config, be backend.Backend, upgrader *RootUpgrader, top api.SignedTargetsMetadata) error {
	if upgrader.SelfVerifying() {
		return nil
	}

	r, n, err := be.GetManifestReader()
	if status.Is(err, status.NotFound) {
		glog.Infof("no on-device manifest present, skipping targets anti-rollback check (first-ever install)")
		return nil
	}
	if err != nil {
		return status.Wrap(status.Internal, "load on-device manifest: %v", err)
	}

	deviceManifest := api.FromPersisted(r, n)
	deviceVersion, err := deviceManifest.Version()
	if err != nil {
		return err
	}

	tm, err := top.TargetsMetadata()
	if err != nil {
		return err
	}
	bundleVersion, err := tm.Version()
	if err != nil {
		return err
	}

	if deviceVersion > bundleVersion {
		return status.Wrap(status.Unauthenticated, "bundle targets version %d is older than on-device manifest version %d", bundleVersion, deviceVersion)
	}
	return nil
}
