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

// Package backend defines the storage capability set a BundleAccessor needs
// from its host: a reader over the trusted root blob, an atomic writer for
// root upgrades, and read/write hooks around the on-device manifest.
//
// This package owns no bytes itself; every implementation is free to back
// onto a filesystem, a flash partition, or (for tests) memory.
package backend

import "io"

// Backend is the capability set BundleAccessor borrows from its host for
// the duration of a single call. A Backend implementation owns the
// lifetime of whatever it returns; callers never close a reader or writer
// handed back by these methods.
type Backend interface {
	// GetRootMetadataReader returns a reader over the currently trusted
	// root metadata, positioned at offset 0. Returns an error if no root
	// has ever been persisted.
	GetRootMetadataReader() (io.ReaderAt, int64, error)

	// SafelyPersistRootMetadata atomically replaces the trusted root
	// metadata with the bytes read from r. "Atomically" means a reader
	// calling GetRootMetadataReader concurrently (in a future,
	// multi-threaded host) never observes a partially written root; a
	// crash mid-write never leaves a truncated or mixed root on disk.
	SafelyPersistRootMetadata(r io.Reader) error

	// BeforeManifestRead is called immediately before GetManifestReader.
	// Implementations that need to flush a cache or take a lock do so
	// here.
	BeforeManifestRead() error

	// GetManifestReader returns a reader over the persisted on-device
	// manifest, or an error if none has ever been persisted (the
	// first-ever install case).
	GetManifestReader() (io.ReaderAt, int64, error)

	// BeforeManifestWrite is called before GetManifestWriter.
	BeforeManifestWrite() error

	// GetManifestWriter returns a writer that PersistManifest streams the
	// exported manifest bytes into.
	GetManifestWriter() (io.Writer, error)

	// AfterManifestWrite is called once the manifest writer has been
	// fully written and (where applicable) closed/flushed.
	AfterManifestWrite() error

	// GetTrustedCheckpointReader returns a reader over the last
	// transparency-log checkpoint this device accepted, or NotFound if
	// log anchoring has never run before. Only consulted when a
	// verify.Config carries a non-nil LogAnchor.
	GetTrustedCheckpointReader() (io.ReaderAt, int64, error)

	// SafelyPersistCheckpoint atomically replaces the trusted checkpoint
	// with the bytes read from r, with the same atomicity requirement as
	// SafelyPersistRootMetadata.
	SafelyPersistCheckpoint(r io.Reader) error
}
