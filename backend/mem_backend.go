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
	"sync"

	"github.com/usbarmory/armory-bundle-verify/status"
)

// MemBackend is an in-memory Backend, used by the verify package's tests
// and by tools that want to dry-run a bundle without touching a real
// device's flash layout. It is safe for concurrent use, though nothing in
// this module actually calls it concurrently (the verification pipeline is single-threaded).
type MemBackend struct {
	mu sync.Mutex

	root        []byte
	hasRoot     bool
	manifest    []byte
	hasManifest bool
	manifestBuf bytes.Buffer

	writingManifest bool

	checkpoint    []byte
	hasCheckpoint bool
}

// NewMemBackend returns an empty backend with no persisted root or
// manifest.
func NewMemBackend() *MemBackend {
	return &MemBackend{}
}

// SeedRoot pre-populates the trusted root, as a test or tool would do
// before the very first verification run.
func (b *MemBackend) SeedRoot(rootBytes []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.root = append([]byte(nil), rootBytes...)
	b.hasRoot = true
}

// SeedManifest pre-populates the on-device manifest.
func (b *MemBackend) SeedManifest(manifestBytes []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manifest = append([]byte(nil), manifestBytes...)
	b.hasManifest = true
}

// CurrentRoot returns a copy of the currently persisted root, for test
// assertions.
func (b *MemBackend) CurrentRoot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.root...)
}

// CurrentManifest returns a copy of the currently persisted manifest, for
// test assertions.
func (b *MemBackend) CurrentManifest() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.manifest...)
}

func (b *MemBackend) GetRootMetadataReader() (io.ReaderAt, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasRoot {
		return nil, 0, status.Wrap(status.NotFound, "no root metadata persisted")
	}
	return bytes.NewReader(b.root), int64(len(b.root)), nil
}

// SafelyPersistRootMetadata reads r fully, then swaps it in as the new
// root atomically with respect to any reader holding the previous
// GetRootMetadataReader result: that reader keeps reading the old slice,
// which is replaced here, never overwritten in place.
func (b *MemBackend) SafelyPersistRootMetadata(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return status.Wrap(status.Internal, "read new root metadata: %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.root = data
	b.hasRoot = true
	return nil
}

func (b *MemBackend) BeforeManifestRead() error { return nil }

func (b *MemBackend) GetManifestReader() (io.ReaderAt, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasManifest {
		return nil, 0, status.Wrap(status.NotFound, "no manifest persisted")
	}
	return bytes.NewReader(b.manifest), int64(len(b.manifest)), nil
}

func (b *MemBackend) BeforeManifestWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manifestBuf.Reset()
	b.writingManifest = true
	return nil
}

func (b *MemBackend) GetManifestWriter() (io.Writer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.writingManifest {
		return nil, status.Wrap(status.FailedPrecondition, "GetManifestWriter called before BeforeManifestWrite")
	}
	return &b.manifestBuf, nil
}

func (b *MemBackend) AfterManifestWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manifest = append([]byte(nil), b.manifestBuf.Bytes()...)
	b.hasManifest = true
	b.writingManifest = false
	return nil
}

// SeedCheckpoint pre-populates the trusted transparency-log checkpoint.
func (b *MemBackend) SeedCheckpoint(checkpointBytes []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoint = append([]byte(nil), checkpointBytes...)
	b.hasCheckpoint = true
}

func (b *MemBackend) GetTrustedCheckpointReader() (io.ReaderAt, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasCheckpoint {
		return nil, 0, status.Wrap(status.NotFound, "no checkpoint persisted")
	}
	return bytes.NewReader(b.checkpoint), int64(len(b.checkpoint)), nil
}

func (b *MemBackend) SafelyPersistCheckpoint(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return status.Wrap(status.Internal, "read new checkpoint: %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoint = data
	b.hasCheckpoint = true
	return nil
}
