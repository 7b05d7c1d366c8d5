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
	"io"

	"github.com/usbarmory/armory-bundle-verify/status"
	"github.com/usbarmory/armory-bundle-verify/wire"
)

// metadataView is the common shape Manifest needs from its backing data:
// either a persisted manifest blob or a bundle's own TargetsMetadata, both
// of which expose a version and a target file list.
type metadataView interface {
	Version() (uint32, error)
	TargetFiles() ([]TargetFile, error)
}

// manifestMsg implements metadataView over the flat on-disk Manifest wire
// shape: { version: u32, target_files: repeated TargetFile }. This is
// deliberately simpler than TargetsMetadata's shape — a persisted manifest
// is never signed, so it carries no signature requirement, no key map.
type manifestMsg struct {
	msg wire.Message
}

func (m manifestMsg) Version() (uint32, error) {
	return m.msg.Uint32(fieldManifestVersion)
}

func (m manifestMsg) TargetFiles() ([]TargetFile, error) {
	msgs, err := m.msg.RepeatedSubMessages(fieldManifestTargetFiles)
	if err != nil {
		return nil, err
	}
	out := make([]TargetFile, len(msgs))
	for i, mm := range msgs {
		out[i] = TargetFile{msg: mm}
	}
	return out, nil
}

// Manifest is a view constructable either from a verified bundle
// (synthesized from its top-level targets metadata) or from a persisted
// blob.
type Manifest struct {
	view   metadataView
	status error
}

// FromBundle synthesizes a Manifest from a bundle's top-level ("targets")
// targets metadata. Returns a Manifest carrying status.NotFound if the
// bundle has no top-level targets metadata.
func FromBundle(bundle UpdateBundle) Manifest {
	metas, err := bundle.TargetsMetadataMap()
	if err != nil {
		return Manifest{status: err}
	}
	top, ok := metas[TopLevelTargetsName]
	if !ok {
		return Manifest{status: status.Wrap(status.NotFound, "bundle has no %q targets metadata", TopLevelTargetsName)}
	}
	tm, err := top.TargetsMetadata()
	if err != nil {
		return Manifest{status: err}
	}
	return Manifest{view: tm}
}

// FromPersisted wraps a manifest previously written by Export.
func FromPersisted(r wire.Stream, limit int64) Manifest {
	return Manifest{view: manifestMsg{msg: wire.Open(r, limit)}}
}

// Status reports whether this Manifest view is usable. Constructors that
// fail to locate their source data return a Manifest carrying this status
// instead of a second error value, so callers can check it lazily the same
// way they check any other accessor method's error.
func (m Manifest) Status() error { return m.status }

// Version returns the manifest's version field.
func (m Manifest) Version() (uint32, error) {
	if m.status != nil {
		return 0, m.status
	}
	return m.view.Version()
}

// TargetFiles returns every TargetFile entry.
func (m Manifest) TargetFiles() ([]TargetFile, error) {
	if m.status != nil {
		return nil, m.status
	}
	return m.view.TargetFiles()
}

// TargetFile returns the single TargetFile entry named name, or
// status.NotFound if absent. Used by PayloadVerifier's personalized-out
// path to look up a cached measurement in the on-device manifest.
func (m Manifest) TargetFile(name string, maxNameLen int) (TargetFile, error) {
	files, err := m.TargetFiles()
	if err != nil {
		return TargetFile{}, err
	}
	for _, f := range files {
		n, err := f.FileName(maxNameLen)
		if err != nil {
			return TargetFile{}, err
		}
		if n == name {
			return f, nil
		}
	}
	return TargetFile{}, status.Wrap(status.NotFound, "manifest has no target file named %q", name)
}

// Export re-serializes the manifest's decoded content (version and every
// target file, each re-read through the accessors above) to w. This is not
// the verbatim-bytes rule that governs root/targets metadata signing
// preimages — a manifest is never signed, so re-encoding it on write is
// fine, and is in fact how PersistManifest produces bytes FromPersisted can
// read back.
func (m Manifest) Export(w io.Writer, maxNameLen int) error {
	if m.status != nil {
		return m.status
	}
	version, err := m.Version()
	if err != nil {
		return err
	}
	files, err := m.TargetFiles()
	if err != nil {
		return err
	}

	var fileBuilders []*wire.Builder
	for _, f := range files {
		name, err := f.FileName(maxNameLen)
		if err != nil {
			return err
		}
		length, err := f.Length()
		if err != nil {
			return err
		}
		hIv, err := f.SHA256()
		if err != nil {
			return err
		}
		hash, err := hIv.Bytes()
		if err != nil {
			return err
		}
		fileBuilders = append(fileBuilders, BuildTargetFile(name, length, hash))
	}

	b := BuildManifest(version, fileBuilders)
	_, err = w.Write(b.Bytes())
	return err
}

// BuildManifest encodes a Manifest message.
func BuildManifest(version uint32, files []*wire.Builder) *wire.Builder {
	b := wire.NewBuilder().PutUint32(fieldManifestVersion, version)
	for _, f := range files {
		b.PutMessage(fieldManifestTargetFiles, f)
	}
	return b
}
