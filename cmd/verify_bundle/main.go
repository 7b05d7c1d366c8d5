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

// verify_bundle is a tool to run the full trust pipeline over a single
// update bundle file and report the outcome.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/usbarmory/armory-bundle-verify/backend"
	"github.com/usbarmory/armory-bundle-verify/bundleaccessor"
	"github.com/usbarmory/armory-bundle-verify/loganchor"
	"github.com/usbarmory/armory-bundle-verify/verify"
)

var (
	bundlePath      = flag.String("bundle", "", "Path to the update bundle file to verify")
	backendDir      = flag.String("backend_dir", "", "Directory holding the trusted root, manifest, and checkpoint files")
	rootName        = flag.String("root_name", "root.bin", "File name of the trusted root metadata within --backend_dir")
	manifestName    = flag.String("manifest_name", "manifest.bin", "File name of the on-device manifest within --backend_dir")
	checkpointName  = flag.String("checkpoint_name", "checkpoint.bin", "File name of the trusted transparency-log checkpoint within --backend_dir")
	maxNameLength   = flag.Int("max_target_name_length", 256, "MAX_TARGET_NAME_LENGTH")
	maxPayloadSize  = flag.Uint64("max_target_payload_size", 64<<20, "MAX_TARGET_PAYLOAD_SIZE")
	withPersonal    = flag.Bool("with_personalization", false, "Accept personalized-out targets by checking the on-device manifest")
	disableVerify   = flag.Bool("disable_bundle_verification", false, "Development only: self-verify mode, trusting the bundle's own root instead of the persisted one")
	logPubKey       = flag.String("log_pubkey", "", "If set, a sumdb/note verifier key requiring the bundle to carry a valid transparency-log anchor proof")
	persistManifest = flag.Bool("persist_manifest", false, "Persist the verified bundle's manifest to --backend_dir on success")
)

func main() {
	flag.Parse()
	if err := validateFlags(); err != nil {
		glog.Exitf("Invalid flag(s):\n%s", err)
	}

	cfg := verify.Config{
		MaxTargetNameLength:       *maxNameLength,
		MaxTargetPayloadSize:      *maxPayloadSize,
		DisableBundleVerification: *disableVerify,
		WithPersonalization:       *withPersonal,
	}
	if *logPubKey != "" {
		v, err := loganchor.NewVerifier(*logPubKey)
		if err != nil {
			glog.Exitf("Failed to parse --log_pubkey: %v", err)
		}
		cfg.LogAnchor = v
	}

	be := backend.NewFileBackend(*backendDir, *rootName, *manifestName, *checkpointName)

	f, err := os.Open(*bundlePath)
	if err != nil {
		glog.Exitf("Failed to open bundle: %v", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		glog.Exitf("Failed to stat bundle: %v", err)
	}

	acc := bundleaccessor.New(cfg, be)
	if err := acc.OpenAndVerify(f, fi.Size()); err != nil {
		glog.Exitf("Bundle verification failed: %v", err)
	}
	defer acc.Close()

	total, err := acc.GetTotalPayloadSize()
	if err != nil {
		glog.Exitf("GetTotalPayloadSize: %v", err)
	}
	manifest, err := acc.GetManifest()
	if err != nil {
		glog.Exitf("GetManifest: %v", err)
	}
	files, err := manifest.TargetFiles()
	if err != nil {
		glog.Exitf("TargetFiles: %v", err)
	}

	fmt.Printf("Bundle verified OK: %d target file(s), %d bytes of in-bundle payload\n", len(files), total)
	for _, tf := range files {
		name, err := tf.FileName(*maxNameLength)
		if err != nil {
			glog.Exitf("FileName: %v", err)
		}
		length, err := tf.Length()
		if err != nil {
			glog.Exitf("Length: %v", err)
		}
		fmt.Printf("  %s (%d bytes)\n", name, length)
	}

	if *persistManifest {
		if err := acc.PersistManifest(); err != nil {
			glog.Exitf("Failed to persist manifest: %v", err)
		}
		glog.Infof("persisted manifest to %s", *backendDir)
	}
}

func validateFlags() error {
	var errs []string
	checkEmpty := func(n, s string) {
		if s == "" {
			errs = append(errs, fmt.Sprintf("--%s can't be empty", n))
		}
	}
	checkEmpty("bundle", *bundlePath)
	checkEmpty("backend_dir", *backendDir)
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n"))
	}
	return nil
}
