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

// Package bundleaccessor ties the api, backend, and verify packages
// together into the single entry point a host calls to process an update
// bundle: open it, verify it end to end, read its contents, and persist
// the resulting manifest. It owns the Closed/Open/Verified state machine
// the rest of this module's packages stay agnostic of.
package bundleaccessor

import (
	"io"

	"github.com/golang/glog"

	"github.com/usbarmory/armory-bundle-verify/api"
	"github.com/usbarmory/armory-bundle-verify/backend"
	"github.com/usbarmory/armory-bundle-verify/status"
	"github.com/usbarmory/armory-bundle-verify/verify"
	"github.com/usbarmory/armory-bundle-verify/wire"
)

type state int

const (
	stateClosed state = iota
	stateOpen
	stateVerified
)

// BundleAccessor is the lifecycle a host drives over a single update
// bundle: Closed, then Open once a stream is bound, then Verified once
// every check in the trust pipeline has passed. Any failure along the way
// closes the accessor; a closed accessor accepts a fresh OpenAndVerify call.
type BundleAccessor struct {
	cfg verify.Config
	be  backend.Backend

	state   state
	bundle  api.UpdateBundle
	targets api.SignedTargetsMetadata
}

// New returns a closed BundleAccessor bound to cfg and be. Call
// OpenAndVerify to process a bundle stream.
func New(cfg verify.Config, be backend.Backend) *BundleAccessor {
	return &BundleAccessor{cfg: cfg, be: be}
}

// OpenAndVerify binds the accessor to the first limit bytes of r and runs
// the full trust pipeline: root upgrade, targets verification, payload
// verification, and (if configured) transparency-log anchoring. Any
// failure leaves the accessor Closed, from which OpenAndVerify may be
// called again to run the whole pipeline anew. Calling it on an Open or
// Verified accessor fails with FailedPrecondition.
func (a *BundleAccessor) OpenAndVerify(r wire.Stream, limit int64) error {
	if a.state != stateClosed {
		return status.Wrap(status.FailedPrecondition, "OpenAndVerify called on a non-closed accessor")
	}
	a.bundle = api.Open(r, limit)
	a.state = stateOpen

	if err := a.doVerify(); err != nil {
		a.Close()
		return err
	}
	a.state = stateVerified
	return nil
}

func (a *BundleAccessor) doVerify() error {
	upgrader, err := verify.NewRootUpgrader(a.cfg, a.be)
	if err != nil {
		return err
	}
	if err := upgrader.UpgradeRoot(a.bundle); err != nil {
		return err
	}

	targets, err := verify.VerifyTargets(a.cfg, a.be, upgrader, a.bundle)
	if err != nil {
		return err
	}
	a.targets = targets

	if err := verify.VerifyPayloads(a.cfg, a.be, targets, a.bundle); err != nil {
		return err
	}

	if err := verify.VerifyLogAnchor(a.cfg, a.be, targets, a.bundle); err != nil {
		return err
	}

	return nil
}

// Close releases this accessor's bundle state. It is always safe to call,
// including on an already-closed accessor.
func (a *BundleAccessor) Close() {
	a.state = stateClosed
	a.bundle = api.UpdateBundle{}
	a.targets = api.SignedTargetsMetadata{}
}

func (a *BundleAccessor) requireVerified() error {
	if a.state != stateVerified {
		return status.Wrap(status.FailedPrecondition, "bundle has not been successfully verified")
	}
	return nil
}

// GetManifest returns the manifest view over this bundle's verified
// targets metadata. Requires a Verified accessor.
func (a *BundleAccessor) GetManifest() (api.Manifest, error) {
	if err := a.requireVerified(); err != nil {
		return api.Manifest{}, err
	}
	return api.FromBundle(a.bundle), nil
}

// GetTotalPayloadSize sums the declared length of every target_file this
// bundle actually carries a payload for (personalized-out targets, which
// have no in-bundle bytes, do not count). Requires a Verified accessor.
func (a *BundleAccessor) GetTotalPayloadSize() (uint64, error) {
	if err := a.requireVerified(); err != nil {
		return 0, err
	}
	tm, err := a.targets.TargetsMetadata()
	if err != nil {
		return 0, err
	}
	files, err := tm.TargetFiles()
	if err != nil {
		return 0, err
	}
	payloads, err := a.bundle.TargetPayloads(a.cfg.MaxTargetNameLength)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, tf := range files {
		name, err := tf.FileName(a.cfg.MaxTargetNameLength)
		if err != nil {
			return 0, err
		}
		if _, ok := payloads[name]; !ok {
			continue
		}
		length, err := tf.Length()
		if err != nil {
			return 0, err
		}
		total += length
	}
	return total, nil
}

// GetTargetPayload returns a streaming reader over name's in-bundle
// payload bytes. Requires a Verified accessor; returns NotFound if name
// has no in-bundle payload (e.g. it was personalized-out).
func (a *BundleAccessor) GetTargetPayload(name string) (io.Reader, error) {
	if err := a.requireVerified(); err != nil {
		return nil, err
	}
	payloads, err := a.bundle.TargetPayloads(a.cfg.MaxTargetNameLength)
	if err != nil {
		return nil, err
	}
	iv, ok := payloads[name]
	if !ok {
		return nil, status.Wrap(status.NotFound, "target %q has no in-bundle payload", name)
	}
	return iv.Reader(), nil
}

// PersistManifest exports the verified bundle's manifest view through the
// backend's manifest write hooks, so subsequent bundles can anti-rollback
// and personalize against it. Requires a Verified accessor.
func (a *BundleAccessor) PersistManifest() error {
	if err := a.requireVerified(); err != nil {
		return err
	}
	if err := a.be.BeforeManifestWrite(); err != nil {
		return status.Wrap(status.Internal, "BeforeManifestWrite: %v", err)
	}
	w, err := a.be.GetManifestWriter()
	if err != nil {
		return status.Wrap(status.Internal, "GetManifestWriter: %v", err)
	}
	m := api.FromBundle(a.bundle)
	if err := m.Export(w, a.cfg.MaxTargetNameLength); err != nil {
		return status.Wrap(status.Internal, "export manifest: %v", err)
	}
	if err := a.be.AfterManifestWrite(); err != nil {
		return status.Wrap(status.Internal, "AfterManifestWrite: %v", err)
	}
	glog.V(1).Infof("persisted manifest after successful bundle verification")
	return nil
}
