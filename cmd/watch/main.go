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

// watch starts a long-running process that polls a local directory for new
// update bundle files, verifying and persisting each one as it appears. It
// never performs network I/O: the directory stands in for a log or release
// feed a caller's own fetch step has already populated.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/usbarmory/armory-bundle-verify/backend"
	"github.com/usbarmory/armory-bundle-verify/bundleaccessor"
	"github.com/usbarmory/armory-bundle-verify/loganchor"
	"github.com/usbarmory/armory-bundle-verify/verify"
)

var (
	watchDir        = flag.String("watch_dir", "", "Directory polled for new *.bundle files")
	backendDir      = flag.String("backend_dir", "", "Directory holding the trusted root, manifest, and checkpoint files")
	rootName        = flag.String("root_name", "root.bin", "File name of the trusted root metadata within --backend_dir")
	manifestName    = flag.String("manifest_name", "manifest.bin", "File name of the on-device manifest within --backend_dir")
	checkpointName  = flag.String("checkpoint_name", "checkpoint.bin", "File name of the trusted transparency-log checkpoint within --backend_dir")
	stateFile       = flag.String("state_file", "", "File recording which bundle file names have already been processed")
	pollInterval    = flag.Duration("poll_interval", 30*time.Second, "The interval at which --watch_dir is polled for new bundles")
	maxNameLength   = flag.Int("max_target_name_length", 256, "MAX_TARGET_NAME_LENGTH")
	maxPayloadSize  = flag.Uint64("max_target_payload_size", 64<<20, "MAX_TARGET_PAYLOAD_SIZE")
	withPersonal    = flag.Bool("with_personalization", false, "Accept personalized-out targets by checking the on-device manifest")
	logPubKey       = flag.String("log_pubkey", "", "If set, a sumdb/note verifier key requiring each bundle to carry a valid transparency-log anchor proof")
	persistManifest = flag.Bool("persist_manifest", true, "Persist each verified bundle's manifest to --backend_dir")
)

func main() {
	flag.Parse()
	if err := validateFlags(); err != nil {
		glog.Exitf("Invalid flag(s):\n%s", err)
	}

	cfg := verify.Config{
		MaxTargetNameLength:  *maxNameLength,
		MaxTargetPayloadSize: *maxPayloadSize,
		WithPersonalization:  *withPersonal,
	}
	if *logPubKey != "" {
		v, err := loganchor.NewVerifier(*logPubKey)
		if err != nil {
			glog.Exitf("Failed to parse --log_pubkey: %v", err)
		}
		cfg.LogAnchor = v
	}

	be := backend.NewFileBackend(*backendDir, *rootName, *manifestName, *checkpointName)

	w := &watcher{
		cfg:       cfg,
		be:        be,
		dir:       *watchDir,
		stateFile: *stateFile,
		seen:      loadSeen(*stateFile),
	}

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()
	for {
		if err := w.scanOnce(); err != nil {
			glog.Errorf("scan of %s failed: %v", w.dir, err)
		}
		<-ticker.C
	}
}

// watcher tracks which bundle file names in dir have already been
// processed, persisting that set to stateFile each time a bundle is
// accepted.
type watcher struct {
	cfg       verify.Config
	be        *backend.FileBackend
	dir       string
	stateFile string
	seen      map[string]bool
}

func (w *watcher) scanOnce() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bundle") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if w.seen[name] {
			continue
		}
		if err := w.processOne(name); err != nil {
			glog.Errorf("bundle %q failed verification: %v", name, err)
			// Leave it unmarked: a corrupt or premature write may still
			// settle into something valid by the next poll.
			continue
		}
		w.seen[name] = true
		if err := w.persistSeen(); err != nil {
			glog.Errorf("failed to persist state file: %v", err)
		}
	}
	return nil
}

func (w *watcher) processOne(name string) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	acc := bundleaccessor.New(w.cfg, w.be)
	if err := acc.OpenAndVerify(f, fi.Size()); err != nil {
		return err
	}
	defer acc.Close()

	if *persistManifest {
		if err := acc.PersistManifest(); err != nil {
			return fmt.Errorf("persist manifest: %w", err)
		}
	}
	glog.Infof("verified and accepted bundle %q", name)
	return nil
}

func loadSeen(path string) map[string]bool {
	seen := make(map[string]bool)
	f, err := os.Open(path)
	if err != nil {
		return seen
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			seen[line] = true
		}
	}
	return seen
}

func (w *watcher) persistSeen() error {
	names := make([]string, 0, len(w.seen))
	for n := range w.seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return os.WriteFile(w.stateFile, []byte(strings.Join(names, "\n")+"\n"), 0644)
}

func validateFlags() error {
	var errs []string
	checkEmpty := func(n, s string) {
		if s == "" {
			errs = append(errs, fmt.Sprintf("--%s can't be empty", n))
		}
	}
	checkEmpty("watch_dir", *watchDir)
	checkEmpty("backend_dir", *backendDir)
	checkEmpty("state_file", *stateFile)
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n"))
	}
	return nil
}
