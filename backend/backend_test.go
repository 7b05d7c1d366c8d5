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

package backend

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/usbarmory/armory-bundle-verify/status"
)

func TestMemBackendRootLifecycle(t *testing.T) {
	b := NewMemBackend()
	if _, _, err := b.GetRootMetadataReader(); !status.Is(err, status.NotFound) {
		t.Fatalf("GetRootMetadataReader before seed: %v, want NotFound", err)
	}

	if err := b.SafelyPersistRootMetadata(bytes.NewReader([]byte("root-v1"))); err != nil {
		t.Fatalf("SafelyPersistRootMetadata: %v", err)
	}
	r, n, err := b.GetRootMetadataReader()
	if err != nil {
		t.Fatalf("GetRootMetadataReader: %v", err)
	}
	got := make([]byte, n)
	if _, err := r.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "root-v1" {
		t.Fatalf("root = %q, want root-v1", got)
	}
}

func TestMemBackendManifestLifecycle(t *testing.T) {
	b := NewMemBackend()
	if _, _, err := b.GetManifestReader(); !status.Is(err, status.NotFound) {
		t.Fatalf("GetManifestReader before write: %v, want NotFound", err)
	}

	if err := b.BeforeManifestWrite(); err != nil {
		t.Fatalf("BeforeManifestWrite: %v", err)
	}
	w, err := b.GetManifestWriter()
	if err != nil {
		t.Fatalf("GetManifestWriter: %v", err)
	}
	if _, err := w.Write([]byte("manifest-bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.AfterManifestWrite(); err != nil {
		t.Fatalf("AfterManifestWrite: %v", err)
	}

	r, n, err := b.GetManifestReader()
	if err != nil {
		t.Fatalf("GetManifestReader: %v", err)
	}
	got := make([]byte, n)
	if _, err := r.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "manifest-bytes" {
		t.Fatalf("manifest = %q, want manifest-bytes", got)
	}
}

func TestFileBackendRootIsAtomicAcrossPersist(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir, "root.bin", "manifest.bin", "checkpoint.bin")

	if err := b.SafelyPersistRootMetadata(bytes.NewReader([]byte("root-v1"))); err != nil {
		t.Fatalf("SafelyPersistRootMetadata v1: %v", err)
	}
	if err := b.SafelyPersistRootMetadata(bytes.NewReader([]byte("root-v2-longer"))); err != nil {
		t.Fatalf("SafelyPersistRootMetadata v2: %v", err)
	}

	r, n, err := b.GetRootMetadataReader()
	if err != nil {
		t.Fatalf("GetRootMetadataReader: %v", err)
	}
	got := make([]byte, n)
	if _, err := r.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "root-v2-longer" {
		t.Fatalf("root = %q, want root-v2-longer", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "root.bin" {
			t.Fatalf("unexpected leftover file %q, temp files should not survive a successful persist", e.Name())
		}
	}
}

func TestFileBackendManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir, "root.bin", "manifest.bin", "checkpoint.bin")

	if err := b.BeforeManifestWrite(); err != nil {
		t.Fatalf("BeforeManifestWrite: %v", err)
	}
	w, err := b.GetManifestWriter()
	if err != nil {
		t.Fatalf("GetManifestWriter: %v", err)
	}
	if _, err := io.WriteString(w, "manifest-contents"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := b.AfterManifestWrite(); err != nil {
		t.Fatalf("AfterManifestWrite: %v", err)
	}

	r, n, err := b.GetManifestReader()
	if err != nil {
		t.Fatalf("GetManifestReader: %v", err)
	}
	got := make([]byte, n)
	if _, err := r.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "manifest-contents" {
		t.Fatalf("manifest = %q, want manifest-contents", got)
	}
}
