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
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/usbarmory/armory-bundle-verify/status"
)

// FileBackend is a filesystem-backed Backend for the CLI tools: the
// trusted root and the on-device manifest are each a single file in a
// configured directory. SafelyPersistRootMetadata writes to a sibling
// temp file and renames it into place, which is atomic on any filesystem
// POSIX rename semantics apply to (same directory, same volume).
type FileBackend struct {
	dir            string
	rootName       string
	manifestName   string
	checkpointName string

	manifestTmp *os.File
}

// NewFileBackend returns a Backend rooted at dir, using rootName,
// manifestName, and checkpointName as the trusted-root, manifest, and
// transparency-log checkpoint file names within it.
func NewFileBackend(dir, rootName, manifestName, checkpointName string) *FileBackend {
	return &FileBackend{dir: dir, rootName: rootName, manifestName: manifestName, checkpointName: checkpointName}
}

func (b *FileBackend) rootPath() string       { return filepath.Join(b.dir, b.rootName) }
func (b *FileBackend) manifestPath() string   { return filepath.Join(b.dir, b.manifestName) }
func (b *FileBackend) checkpointPath() string { return filepath.Join(b.dir, b.checkpointName) }

func (b *FileBackend) GetRootMetadataReader() (io.ReaderAt, int64, error) {
	f, err := os.Open(b.rootPath())
	if os.IsNotExist(err) {
		return nil, 0, status.Wrap(status.NotFound, "no root metadata persisted at %s", b.rootPath())
	}
	if err != nil {
		return nil, 0, status.Wrap(status.Internal, "open root metadata: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, status.Wrap(status.Internal, "stat root metadata: %v", err)
	}
	return f, fi.Size(), nil
}

// SafelyPersistRootMetadata writes r to a temp file in the same directory
// as the destination, fsyncs it, then renames it over the destination.
func (b *FileBackend) SafelyPersistRootMetadata(r io.Reader) error {
	tmp, err := os.CreateTemp(b.dir, b.rootName+".tmp-*")
	if err != nil {
		return status.Wrap(status.Internal, "create temp root file: %v", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return status.Wrap(status.Internal, "write temp root file: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return status.Wrap(status.Internal, "sync temp root file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return status.Wrap(status.Internal, "close temp root file: %v", err)
	}
	if err := os.Rename(tmpPath, b.rootPath()); err != nil {
		return status.Wrap(status.Internal, "rename temp root file into place: %v", err)
	}
	glog.V(1).Infof("persisted new trusted root to %s", b.rootPath())
	return nil
}

func (b *FileBackend) BeforeManifestRead() error { return nil }

func (b *FileBackend) GetManifestReader() (io.ReaderAt, int64, error) {
	f, err := os.Open(b.manifestPath())
	if os.IsNotExist(err) {
		return nil, 0, status.Wrap(status.NotFound, "no manifest persisted at %s", b.manifestPath())
	}
	if err != nil {
		return nil, 0, status.Wrap(status.Internal, "open manifest: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, status.Wrap(status.Internal, "stat manifest: %v", err)
	}
	return f, fi.Size(), nil
}

func (b *FileBackend) BeforeManifestWrite() error {
	tmp, err := os.CreateTemp(b.dir, b.manifestName+".tmp-*")
	if err != nil {
		return status.Wrap(status.Internal, "create temp manifest file: %v", err)
	}
	b.manifestTmp = tmp
	return nil
}

func (b *FileBackend) GetManifestWriter() (io.Writer, error) {
	if b.manifestTmp == nil {
		return nil, status.Wrap(status.FailedPrecondition, "GetManifestWriter called before BeforeManifestWrite")
	}
	return b.manifestTmp, nil
}

func (b *FileBackend) AfterManifestWrite() error {
	if b.manifestTmp == nil {
		return status.Wrap(status.FailedPrecondition, "AfterManifestWrite called before BeforeManifestWrite")
	}
	tmpPath := b.manifestTmp.Name()
	if err := b.manifestTmp.Sync(); err != nil {
		b.manifestTmp.Close()
		b.manifestTmp = nil
		return status.Wrap(status.Internal, "sync temp manifest file: %v", err)
	}
	if err := b.manifestTmp.Close(); err != nil {
		b.manifestTmp = nil
		return status.Wrap(status.Internal, "close temp manifest file: %v", err)
	}
	b.manifestTmp = nil
	if err := os.Rename(tmpPath, b.manifestPath()); err != nil {
		return status.Wrap(status.Internal, "rename temp manifest file into place: %v", err)
	}
	glog.V(1).Infof("persisted manifest to %s", b.manifestPath())
	return nil
}

func (b *FileBackend) GetTrustedCheckpointReader() (io.ReaderAt, int64, error) {
	f, err := os.Open(b.checkpointPath())
	if os.IsNotExist(err) {
		return nil, 0, status.Wrap(status.NotFound, "no checkpoint persisted at %s", b.checkpointPath())
	}
	if err != nil {
		return nil, 0, status.Wrap(status.Internal, "open checkpoint: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, status.Wrap(status.Internal, "stat checkpoint: %v", err)
	}
	return f, fi.Size(), nil
}

// SafelyPersistCheckpoint follows the same temp-file-then-rename pattern
// as SafelyPersistRootMetadata.
func (b *FileBackend) SafelyPersistCheckpoint(r io.Reader) error {
	tmp, err := os.CreateTemp(b.dir, b.checkpointName+".tmp-*")
	if err != nil {
		return status.Wrap(status.Internal, "create temp checkpoint file: %v", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return status.Wrap(status.Internal, "write temp checkpoint file: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return status.Wrap(status.Internal, "sync temp checkpoint file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return status.Wrap(status.Internal, "close temp checkpoint file: %v", err)
	}
	if err := os.Rename(tmpPath, b.checkpointPath()); err != nil {
		return status.Wrap(status.Internal, "rename temp checkpoint file into place: %v", err)
	}
	glog.V(1).Infof("persisted trusted checkpoint to %s", b.checkpointPath())
	return nil
}
