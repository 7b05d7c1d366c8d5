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
	"bytes"
	"testing"

	"github.com/usbarmory/armory-bundle-verify/status"
	"github.com/usbarmory/armory-bundle-verify/wire"
)

func TestManifestFromBundle(t *testing.T) {
	tf := BuildTargetFile("firmware.bin", 1024, bytes.Repeat([]byte{0xEE}, 32))
	targets := BuildTargetsMetadata(9, []*wire.Builder{tf}).Bytes()
	signedTargets := BuildSignedTargetsMetadata(targets, nil)

	bundleBytes := BuildUpdateBundle(nil, map[string]*wire.Builder{TopLevelTargetsName: signedTargets}, nil, nil).Bytes()
	bundle := Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	m := FromBundle(bundle)
	if err := m.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if v, err := m.Version(); err != nil || v != 9 {
		t.Fatalf("Version = %v, %v, want 9", v, err)
	}
	f, err := m.TargetFile("firmware.bin", 256)
	if err != nil {
		t.Fatalf("TargetFile: %v", err)
	}
	if length, err := f.Length(); err != nil || length != 1024 {
		t.Fatalf("Length = %v, %v, want 1024", length, err)
	}

	if _, err := m.TargetFile("missing.bin", 256); !status.Is(err, status.NotFound) {
		t.Fatalf("TargetFile(missing) error = %v, want NotFound", err)
	}
}

func TestManifestFromBundleMissingTargets(t *testing.T) {
	bundleBytes := BuildUpdateBundle(nil, nil, nil, nil).Bytes()
	bundle := Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	m := FromBundle(bundle)
	if !status.Is(m.Status(), status.NotFound) {
		t.Fatalf("Status = %v, want NotFound", m.Status())
	}
	if _, err := m.Version(); !status.Is(err, status.NotFound) {
		t.Fatalf("Version error = %v, want NotFound", err)
	}
}

func TestManifestExportAndFromPersisted(t *testing.T) {
	tf := BuildTargetFile("bootloader.bin", 512, bytes.Repeat([]byte{0x11}, 32))
	targets := BuildTargetsMetadata(4, []*wire.Builder{tf}).Bytes()
	signedTargets := BuildSignedTargetsMetadata(targets, nil)
	bundleBytes := BuildUpdateBundle(nil, map[string]*wire.Builder{TopLevelTargetsName: signedTargets}, nil, nil).Bytes()
	bundle := Open(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))

	m := FromBundle(bundle)
	var buf bytes.Buffer
	if err := m.Export(&buf, 256); err != nil {
		t.Fatalf("Export: %v", err)
	}

	persisted := FromPersisted(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err := persisted.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if v, err := persisted.Version(); err != nil || v != 4 {
		t.Fatalf("Version = %v, %v, want 4", v, err)
	}
	files, err := persisted.TargetFiles()
	if err != nil || len(files) != 1 {
		t.Fatalf("TargetFiles = %v, %v", files, err)
	}
	name, err := files[0].FileName(256)
	if err != nil || name != "bootloader.bin" {
		t.Fatalf("FileName = %q, %v", name, err)
	}
}
