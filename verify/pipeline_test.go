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
	"crypto/ecdsa"
	"testing"

	"github.com/usbarmory/armory-bundle-verify/api"
	"github.com/usbarmory/armory-bundle-verify/backend"
	"github.com/usbarmory/armory-bundle-verify/cryptoprim"
	"github.com/usbarmory/armory-bundle-verify/status"
	"github.com/usbarmory/armory-bundle-verify/wire"
)

type testKey struct {
	priv  *ecdsa.PrivateKey
	pub   []byte
	keyID [32]byte
}

func newTestKey(t *testing.T, label string) testKey {
	t.Helper()
	priv, pub, err := cryptoprim.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return testKey{priv: priv, pub: pub, keyID: cryptoprim.KeyID("ecdsa", label, pub)}
}

func sign(t *testing.T, k testKey, message []byte) *wire.Builder {
	t.Helper()
	digest, err := cryptoprim.SHA256(bytes.NewReader(message))
	if err != nil {
		t.Fatalf("SHA256: %v", err)
	}
	sig, err := cryptoprim.SignRaw(k.priv, digest)
	if err != nil {
		t.Fatalf("SignRaw: %v", err)
	}
	return api.BuildSignature(k.keyID[:], sig)
}

func buildRoot(t *testing.T, version uint32, signer testKey, includedKeys []testKey, threshold uint32) []byte {
	t.Helper()
	keys := map[string][]byte{}
	var allowed [][]byte
	for _, k := range includedKeys {
		keys[string(k.keyID[:])] = k.pub
		allowed = append(allowed, k.keyID[:])
	}
	req := api.BuildSignatureRequirement(threshold, allowed)
	root := api.BuildRootMetadata(version, keys, req, req).Bytes()
	return api.BuildSignedRootMetadata(root, []*wire.Builder{sign(t, signer, root)}).Bytes()
}

func buildTargets(t *testing.T, version uint32, signer testKey, files []*wire.Builder) []byte {
	t.Helper()
	targets := api.BuildTargetsMetadata(version, files).Bytes()
	return api.BuildSignedTargetsMetadata(targets, []*wire.Builder{sign(t, signer, targets)}).Bytes()
}

func sha256Of(data []byte) []byte {
	digest, _ := cryptoprim.SHA256(bytes.NewReader(data))
	return digest[:]
}

func TestPipelineHappyPath(t *testing.T) {
	root := newTestKey(t, "root-v1")
	be := backend.NewMemBackend()
	be.SeedRoot(buildRoot(t, 1, root, []testKey{root}, 1))

	payload := []byte("data")
	tf := api.BuildTargetFile("app", uint64(len(payload)), sha256Of(payload))
	signedTargets := buildTargets(t, 1, root, []*wire.Builder{tf})

	bundleBytes := api.BuildUpdateBundle(
		nil,
		map[string]*wire.Builder{api.TopLevelTargetsName: rebuildSignedTargets(signedTargets)},
		map[string][]byte{"app": payload},
		nil,
	).Bytes()

	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))
	cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20}

	upgrader, err := NewRootUpgrader(cfg, be)
	if err != nil {
		t.Fatalf("NewRootUpgrader: %v", err)
	}
	if err := upgrader.UpgradeRoot(bundle); err != nil {
		t.Fatalf("UpgradeRoot: %v", err)
	}
	targets, err := VerifyTargets(cfg, be, upgrader, bundle)
	if err != nil {
		t.Fatalf("VerifyTargets: %v", err)
	}
	if err := VerifyPayloads(cfg, be, targets, bundle); err != nil {
		t.Fatalf("VerifyPayloads: %v", err)
	}
}

// rebuildSignedTargets re-wraps already-serialized SignedTargetsMetadata
// bytes as a *wire.Builder whose Bytes() are identical, so it can be
// embedded into a parent message via PutMessage without re-encoding.
func rebuildSignedTargets(serialized []byte) *wire.Builder {
	b := wire.NewBuilder()
	b.Raw(serialized)
	return b
}

func TestPipelineRollbackRejected(t *testing.T) {
	root := newTestKey(t, "root")
	be := backend.NewMemBackend()
	be.SeedRoot(buildRoot(t, 5, root, []testKey{root}, 1))

	newRootBytes := buildRoot(t, 4, root, []testKey{root}, 1)
	bundleBytes := api.BuildUpdateBundle(rebuildSignedTargets(newRootBytes), nil, nil, nil).Bytes()
	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20}
	upgrader, err := NewRootUpgrader(cfg, be)
	if err != nil {
		t.Fatalf("NewRootUpgrader: %v", err)
	}
	err = upgrader.UpgradeRoot(bundle)
	if !status.Is(err, status.Unauthenticated) {
		t.Fatalf("UpgradeRoot error = %v, want Unauthenticated", err)
	}
}

func TestPipelineThresholdNotMet(t *testing.T) {
	k1 := newTestKey(t, "k1")
	k2 := newTestKey(t, "k2")

	keys := map[string][]byte{
		string(k1.keyID[:]): k1.pub,
		string(k2.keyID[:]): k2.pub,
	}
	allowed := [][]byte{k1.keyID[:], k2.keyID[:]}
	req := api.BuildSignatureRequirement(2, allowed)
	rootMsg := api.BuildRootMetadata(1, keys, req, req).Bytes()
	signedRoot := api.BuildSignedRootMetadata(rootMsg, []*wire.Builder{sign(t, k1, rootMsg)}).Bytes()

	be := backend.NewMemBackend()
	be.SeedRoot(signedRoot)

	bundleBytes := api.BuildUpdateBundle(rebuildSignedTargets(signedRoot), nil, nil, nil).Bytes()
	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20}
	upgrader, err := NewRootUpgrader(cfg, be)
	if err != nil {
		t.Fatalf("NewRootUpgrader: %v", err)
	}
	err = upgrader.UpgradeRoot(bundle)
	if !status.Is(err, status.Unauthenticated) {
		t.Fatalf("UpgradeRoot error = %v, want Unauthenticated", err)
	}
}

// Self-verify mode only changes where the trusted root is seeded from; it
// never skips the signature checks themselves. A root whose lone signature
// isn't in its own key map and allowed list must still be rejected.
func TestPipelineSelfVerifyUnsignedRootRejected(t *testing.T) {
	be := backend.NewMemBackend()
	cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20, DisableBundleVerification: true}

	payload := []byte("data")
	tf := api.BuildTargetFile("app", uint64(len(payload)), sha256Of(payload))
	targets := api.BuildTargetsMetadata(1, []*wire.Builder{tf}).Bytes()
	unsignedTargets := api.BuildSignedTargetsMetadata(targets, nil)

	root := newTestKey(t, "root")
	unsignedRoot := buildRoot(t, 1, root, nil, 0)

	bundleBytes := api.BuildUpdateBundle(
		rebuildSignedTargets(unsignedRoot),
		map[string]*wire.Builder{api.TopLevelTargetsName: unsignedTargets},
		map[string][]byte{"app": payload},
		nil,
	).Bytes()
	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	upgrader, err := NewRootUpgrader(cfg, be)
	if err != nil {
		t.Fatalf("NewRootUpgrader: %v", err)
	}
	if err := upgrader.UpgradeRoot(bundle); !status.Is(err, status.Unauthenticated) {
		t.Fatalf("UpgradeRoot error = %v, want Unauthenticated", err)
	}
}

// A self-verify root that is properly self-signed still succeeds: the
// dual check degenerates into verifying the incoming root against itself
// twice, which is exactly what a correctly signed root satisfies.
func TestPipelineSelfVerifyProperlySignedRootAccepted(t *testing.T) {
	be := backend.NewMemBackend()
	cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20, DisableBundleVerification: true}

	payload := []byte("data")
	tf := api.BuildTargetFile("app", uint64(len(payload)), sha256Of(payload))

	root := newTestKey(t, "root")
	signedRoot := buildRoot(t, 1, root, []testKey{root}, 1)
	signedTargets := buildTargets(t, 1, root, []*wire.Builder{tf})

	bundleBytes := api.BuildUpdateBundle(
		rebuildSignedTargets(signedRoot),
		map[string]*wire.Builder{api.TopLevelTargetsName: rebuildSignedTargets(signedTargets)},
		map[string][]byte{"app": payload},
		nil,
	).Bytes()
	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	upgrader, err := NewRootUpgrader(cfg, be)
	if err != nil {
		t.Fatalf("NewRootUpgrader: %v", err)
	}
	if err := upgrader.UpgradeRoot(bundle); err != nil {
		t.Fatalf("UpgradeRoot: %v", err)
	}
	targetsView, err := VerifyTargets(cfg, be, upgrader, bundle)
	if err != nil {
		t.Fatalf("VerifyTargets: %v", err)
	}
	if err := VerifyPayloads(cfg, be, targetsView, bundle); err != nil {
		t.Fatalf("VerifyPayloads: %v", err)
	}
}

// Root rotation requires a bundle's new root to be signed by both the old
// (trusted) root's key set and its own (new) key set. Either signature
// missing must fail, and only both present succeeds.
func TestPipelineRootRotationRequiresBothSignatures(t *testing.T) {
	oldKey := newTestKey(t, "old")
	newKey := newTestKey(t, "new")

	newRoot := func(signers []testKey) []byte {
		req := api.BuildSignatureRequirement(1, [][]byte{newKey.keyID[:]})
		rootMsg := api.BuildRootMetadata(2, map[string][]byte{string(newKey.keyID[:]): newKey.pub}, req, req).Bytes()
		var sigs []*wire.Builder
		for _, s := range signers {
			sigs = append(sigs, sign(t, s, rootMsg))
		}
		return api.BuildSignedRootMetadata(rootMsg, sigs).Bytes()
	}

	run := func(signers []testKey) error {
		be := backend.NewMemBackend()
		be.SeedRoot(buildRoot(t, 1, oldKey, []testKey{oldKey}, 1))

		rotated := newRoot(signers)
		bundleBytes := api.BuildUpdateBundle(rebuildSignedTargets(rotated), nil, nil, nil).Bytes()
		bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

		cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20}
		upgrader, err := NewRootUpgrader(cfg, be)
		if err != nil {
			t.Fatalf("NewRootUpgrader: %v", err)
		}
		return upgrader.UpgradeRoot(bundle)
	}

	if err := run([]testKey{oldKey}); !status.Is(err, status.Unauthenticated) {
		t.Errorf("old-key-only signature: UpgradeRoot error = %v, want Unauthenticated (missing self-signature)", err)
	}
	if err := run([]testKey{newKey}); !status.Is(err, status.Unauthenticated) {
		t.Errorf("new-key-only signature: UpgradeRoot error = %v, want Unauthenticated (missing outer signature)", err)
	}
	if err := run([]testKey{oldKey, newKey}); err != nil {
		t.Errorf("old+new signatures: UpgradeRoot error = %v, want nil", err)
	}
}

func TestPipelinePersonalizedOutTarget(t *testing.T) {
	root := newTestKey(t, "root")
	be := backend.NewMemBackend()
	be.SeedRoot(buildRoot(t, 1, root, []testKey{root}, 1))

	cfgPayload := []byte("config-bytes-0123")
	hash := sha256Of(cfgPayload)

	deviceTF := api.BuildTargetFile("cfg", uint64(len(cfgPayload)), hash)
	deviceManifest := api.BuildManifest(0, []*wire.Builder{deviceTF}).Bytes()
	be.SeedManifest(deviceManifest)

	bundleTF := api.BuildTargetFile("cfg", uint64(len(cfgPayload)), hash)
	signedTargets := buildTargets(t, 1, root, []*wire.Builder{bundleTF})
	bundleBytes := api.BuildUpdateBundle(
		nil,
		map[string]*wire.Builder{api.TopLevelTargetsName: rebuildSignedTargets(signedTargets)},
		nil, // payload intentionally omitted: personalized-out
		nil,
	).Bytes()
	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	t.Run("personalization enabled", func(t *testing.T) {
		cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20, WithPersonalization: true}
		upgrader, err := NewRootUpgrader(cfg, be)
		if err != nil {
			t.Fatalf("NewRootUpgrader: %v", err)
		}
		if err := upgrader.UpgradeRoot(bundle); err != nil {
			t.Fatalf("UpgradeRoot: %v", err)
		}
		targets, err := VerifyTargets(cfg, be, upgrader, bundle)
		if err != nil {
			t.Fatalf("VerifyTargets: %v", err)
		}
		if err := VerifyPayloads(cfg, be, targets, bundle); err != nil {
			t.Fatalf("VerifyPayloads: %v", err)
		}
	})

	t.Run("personalization disabled", func(t *testing.T) {
		cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20, WithPersonalization: false}
		upgrader, err := NewRootUpgrader(cfg, be)
		if err != nil {
			t.Fatalf("NewRootUpgrader: %v", err)
		}
		if err := upgrader.UpgradeRoot(bundle); err != nil {
			t.Fatalf("UpgradeRoot: %v", err)
		}
		targets, err := VerifyTargets(cfg, be, upgrader, bundle)
		if err != nil {
			t.Fatalf("VerifyTargets: %v", err)
		}
		if err := VerifyPayloads(cfg, be, targets, bundle); !status.Is(err, status.Unauthenticated) {
			t.Fatalf("VerifyPayloads error = %v, want Unauthenticated", err)
		}
	})
}

func TestPipelineCorruptPayloadHash(t *testing.T) {
	root := newTestKey(t, "root")
	be := backend.NewMemBackend()
	be.SeedRoot(buildRoot(t, 1, root, []testKey{root}, 1))

	declared := []byte("data")
	tf := api.BuildTargetFile("app", uint64(len(declared)), sha256Of(declared))
	signedTargets := buildTargets(t, 1, root, []*wire.Builder{tf})

	corruptPayload := []byte("nope")
	bundleBytes := api.BuildUpdateBundle(
		nil,
		map[string]*wire.Builder{api.TopLevelTargetsName: rebuildSignedTargets(signedTargets)},
		map[string][]byte{"app": corruptPayload},
		nil,
	).Bytes()
	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20}
	upgrader, err := NewRootUpgrader(cfg, be)
	if err != nil {
		t.Fatalf("NewRootUpgrader: %v", err)
	}
	if err := upgrader.UpgradeRoot(bundle); err != nil {
		t.Fatalf("UpgradeRoot: %v", err)
	}
	targets, err := VerifyTargets(cfg, be, upgrader, bundle)
	if err != nil {
		t.Fatalf("VerifyTargets: %v", err)
	}
	if err := VerifyPayloads(cfg, be, targets, bundle); !status.Is(err, status.Unauthenticated) {
		t.Fatalf("VerifyPayloads error = %v, want Unauthenticated", err)
	}
}

func TestPipelineOversizedTargetNameRejected(t *testing.T) {
	root := newTestKey(t, "root")
	be := backend.NewMemBackend()
	be.SeedRoot(buildRoot(t, 1, root, []testKey{root}, 1))

	longName := string(bytes.Repeat([]byte{'a'}, 300))
	payload := []byte("data")
	tf := api.BuildTargetFile(longName, uint64(len(payload)), sha256Of(payload))
	signedTargets := buildTargets(t, 1, root, []*wire.Builder{tf})

	// The bundle's target_payloads map must not carry a key this long
	// itself, so the failure is attributed to the target file's own
	// FileName lookup rather than bundle.TargetPayloads' own bound.
	bundleBytes := api.BuildUpdateBundle(
		nil,
		map[string]*wire.Builder{api.TopLevelTargetsName: rebuildSignedTargets(signedTargets)},
		nil,
		nil,
	).Bytes()
	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20}
	upgrader, err := NewRootUpgrader(cfg, be)
	if err != nil {
		t.Fatalf("NewRootUpgrader: %v", err)
	}
	if err := upgrader.UpgradeRoot(bundle); err != nil {
		t.Fatalf("UpgradeRoot: %v", err)
	}
	targets, err := VerifyTargets(cfg, be, upgrader, bundle)
	if err != nil {
		t.Fatalf("VerifyTargets: %v", err)
	}
	if err := VerifyPayloads(cfg, be, targets, bundle); !status.Is(err, status.OutOfRange) {
		t.Fatalf("VerifyPayloads error = %v, want OutOfRange", err)
	}
}

func TestPipelineMissingSHA256HashNotFound(t *testing.T) {
	root := newTestKey(t, "root")
	be := backend.NewMemBackend()
	be.SeedRoot(buildRoot(t, 1, root, []testKey{root}, 1))

	payload := []byte("data")
	tf := api.BuildTargetFileWithHashes("app", uint64(len(payload)), nil)
	signedTargets := buildTargets(t, 1, root, []*wire.Builder{tf})

	bundleBytes := api.BuildUpdateBundle(
		nil,
		map[string]*wire.Builder{api.TopLevelTargetsName: rebuildSignedTargets(signedTargets)},
		map[string][]byte{"app": payload},
		nil,
	).Bytes()
	bundle := api.Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	cfg := Config{MaxTargetNameLength: 256, MaxTargetPayloadSize: 1 << 20}
	upgrader, err := NewRootUpgrader(cfg, be)
	if err != nil {
		t.Fatalf("NewRootUpgrader: %v", err)
	}
	if err := upgrader.UpgradeRoot(bundle); err != nil {
		t.Fatalf("UpgradeRoot: %v", err)
	}
	targets, err := VerifyTargets(cfg, be, upgrader, bundle)
	if err != nil {
		t.Fatalf("VerifyTargets: %v", err)
	}
	if err := VerifyPayloads(cfg, be, targets, bundle); !status.Is(err, status.NotFound) {
		t.Fatalf("VerifyPayloads error = %v, want NotFound", err)
	}
}
