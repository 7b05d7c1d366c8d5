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
	"github.com/usbarmory/armory-bundle-verify/wire"
)

// RootUpgrader carries the trust state a verification run upgrades as it
// processes a bundle's incoming root metadata.
type RootUpgrader struct {
	cfg Config
	be  backend.Backend

	trustedRoot   api.SignedRootMetadata
	selfVerifying bool
}

// NewRootUpgrader loads the currently trusted root from be, unless
// cfg.DisableBundleVerification is set, in which case the trusted root is
// established from the bundle's own incoming root the first time
// UpgradeRoot runs (self-verify mode).
func NewRootUpgrader(cfg Config, be backend.Backend) (*RootUpgrader, error) {
	u := &RootUpgrader{cfg: cfg, be: be, selfVerifying: cfg.DisableBundleVerification}
	if u.selfVerifying {
		glog.Warning("bundle verification disabled: trusting the bundle's own root metadata")
		return u, nil
	}

	r, n, err := be.GetRootMetadataReader()
	if err != nil {
		return nil, status.Wrap(status.Internal, "load trusted root metadata: %v", err)
	}
	u.trustedRoot = api.NewSignedRootMetadata(wire.Open(r, n))
	return u, nil
}

// TrustedRoot returns the root metadata this upgrader currently trusts,
// which TargetsVerifier reads keys and targets_signature_requirement from.
func (u *RootUpgrader) TrustedRoot() api.SignedRootMetadata { return u.trustedRoot }

// SelfVerifying reports whether this run is trusting the bundle's own
// content rather than a backend-persisted root.
func (u *RootUpgrader) SelfVerifying() bool { return u.selfVerifying }

// UpgradeRoot verifies the bundle's incoming root against
// the currently trusted root, verify it against itself, enforce
// anti-rollback, persist it, then promote it to trusted.
//
// A bundle that carries no incoming root is not an error — root rotation
// is optional on any given update.
func (u *RootUpgrader) UpgradeRoot(bundle api.UpdateBundle) error {
	incoming, err := bundle.RootMetadata()
	if err != nil {
		glog.Warning("bundle carries no incoming root metadata, leaving trusted root unchanged")
		return nil
	}

	if u.selfVerifying && u.trustedRoot == (api.SignedRootMetadata{}) {
		glog.Warning("self-verify: seeding trusted root from the bundle's own root metadata before checking it")
		u.trustedRoot = incoming
	}

	if err := u.verifyAgainstTrusted(incoming); err != nil {
		return err
	}
	if err := u.verifyAgainstSelf(incoming); err != nil {
		return err
	}
	if err := u.checkAntiRollback(incoming); err != nil {
		return err
	}

	if !u.selfVerifying {
		if err := u.be.SafelyPersistRootMetadata(incoming.Interval().Reader()); err != nil {
			return status.Wrap(status.Internal, "persist new root metadata: %v", err)
		}
	}

	u.trustedRoot = incoming
	return nil
}

func (u *RootUpgrader) verifyAgainstTrusted(incoming api.SignedRootMetadata) error {
	trustedRM, err := u.trustedRoot.RootMetadata()
	if err != nil {
		return err
	}
	keys, err := trustedRM.Keys()
	if err != nil {
		return err
	}
	req, err := trustedRM.RootSignatureRequirement()
	if err != nil {
		return err
	}
	return verifyRootSignedBy(incoming, keys, req)
}

func (u *RootUpgrader) verifyAgainstSelf(incoming api.SignedRootMetadata) error {
	incomingRM, err := incoming.RootMetadata()
	if err != nil {
		return err
	}
	keys, err := incomingRM.Keys()
	if err != nil {
		return err
	}
	req, err := incomingRM.RootSignatureRequirement()
	if err != nil {
		return err
	}
	return verifyRootSignedBy(incoming, keys, req)
}

func verifyRootSignedBy(incoming api.SignedRootMetadata, keys api.KeyMap, req api.SignatureRequirement) error {
	message, err := incoming.SerializedRootMetadata()
	if err != nil {
		return err
	}
	sigs, err := incoming.Signatures()
	if err != nil {
		return err
	}
	if err := VerifySignatures(message, sigs, req, keys); err != nil {
		return status.Wrap(status.Unauthenticated, "root metadata signature check failed: %v", err)
	}
	return nil
}

func (u *RootUpgrader) checkAntiRollback(incoming api.SignedRootMetadata) error {
	trustedRM, err := u.trustedRoot.RootMetadata()
	if err != nil {
		return err
	}
	trustedVersion, err := trustedRM.Version()
	if err != nil {
		return err
	}
	incomingRM, err := incoming.RootMetadata()
	if err != nil {
		return err
	}
	incomingVersion, err := incomingRM.Version()
	if err != nil {
		return err
	}
	if trustedVersion > incomingVersion {
		return status.Wrap(status.Unauthenticated, "new root version %d is older than trusted version %d", incomingVersion, trustedVersion)
	}
	return nil
}
