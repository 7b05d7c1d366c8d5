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

// create_bundle is a tool to assemble and sign an update bundle from a
// directory of target payload files.
package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"github.com/usbarmory/armory-bundle-verify/api"
	"github.com/usbarmory/armory-bundle-verify/cryptoprim"
	"github.com/usbarmory/armory-bundle-verify/wire"
)

var (
	targetsDir    = flag.String("targets_dir", "", "Directory whose files become the bundle's target payloads")
	out           = flag.String("out", "", "Path to write the assembled bundle to")
	rootPrivHex   = flag.String("root_priv", "", "Hex-encoded P-256 private scalar for the root signing key")
	targetsPriv   = flag.String("targets_priv", "", "Hex-encoded P-256 private scalar for the targets signing key")
	generateKeys  = flag.Bool("generate_keys", false, "Generate fresh root and targets key pairs instead of using --root_priv/--targets_priv")
	rootVersion   = flag.Uint("root_version", 1, "RootMetadata.common_metadata.version")
	targetVersion = flag.Uint("targets_version", 1, "TargetsMetadata.common_metadata.version")
	threshold     = flag.Uint("threshold", 1, "Signature threshold for both the root and targets requirements")
	includeRoot   = flag.Bool("include_root", true, "Include signed root metadata in the bundle")
)

func main() {
	flag.Parse()
	if err := validateFlags(); err != nil {
		glog.Exitf("Invalid flag(s):\n%s", err)
	}

	rootPriv, targetsPrivKey, err := resolveKeys()
	if err != nil {
		glog.Exitf("Failed to resolve signing keys: %v", err)
	}

	files, err := collectTargetFiles(*targetsDir)
	if err != nil {
		glog.Exitf("Failed to collect target files: %v", err)
	}

	targetsMetaBytes, sigs, err := signedTargets(targetsPrivKey, files)
	if err != nil {
		glog.Exitf("Failed to build signed targets metadata: %v", err)
	}
	signedTargetsB := api.BuildSignedTargetsMetadata(targetsMetaBytes, sigs)

	var signedRootB *wire.Builder
	if *includeRoot {
		signedRootB, err = signedRoot(rootPriv, targetsPrivKey)
		if err != nil {
			glog.Exitf("Failed to build signed root metadata: %v", err)
		}
	}

	payloads := make(map[string][]byte, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			glog.Exitf("Failed to read %s: %v", f.path, err)
		}
		payloads[f.name] = data
	}

	bundle := api.BuildUpdateBundle(signedRootB, map[string]*wire.Builder{api.TopLevelTargetsName: signedTargetsB}, payloads, nil)

	if err := os.WriteFile(*out, bundle.Bytes(), 0644); err != nil {
		glog.Exitf("Failed to write bundle: %v", err)
	}
	glog.Infof("wrote bundle to %s (%d target file(s))", *out, len(files))
}

type targetFile struct {
	name string
	path string
}

func collectTargetFiles(dir string) ([]targetFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []targetFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, targetFile{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	return out, nil
}

func signedTargets(priv *ecdsa.PrivateKey, files []targetFile) ([]byte, []*wire.Builder, error) {
	var fileBuilders []*wire.Builder
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", f.path, err)
		}
		digest, err := cryptoprim.SHA256(bytes.NewReader(data))
		if err != nil {
			return nil, nil, err
		}
		fileBuilders = append(fileBuilders, api.BuildTargetFile(f.name, uint64(len(data)), digest[:]))
	}
	tm := api.BuildTargetsMetadata(uint32(*targetVersion), fileBuilders)
	tmBytes := tm.Bytes()

	digest, err := cryptoprim.SHA256(bytes.NewReader(tmBytes))
	if err != nil {
		return nil, nil, err
	}
	sig, err := cryptoprim.SignRaw(priv, digest)
	if err != nil {
		return nil, nil, err
	}
	keyID := publicKeyID(&priv.PublicKey)
	return tmBytes, []*wire.Builder{api.BuildSignature(keyID[:], sig)}, nil
}

func signedRoot(rootPriv, targetsPriv *ecdsa.PrivateKey) (*wire.Builder, error) {
	rootPub := marshalPub(&rootPriv.PublicKey)
	targetsPub := marshalPub(&targetsPriv.PublicKey)
	rootKeyID := publicKeyID(&rootPriv.PublicKey)
	targetsKeyID := publicKeyID(&targetsPriv.PublicKey)

	keys := map[string][]byte{
		string(rootKeyID[:]):    rootPub,
		string(targetsKeyID[:]): targetsPub,
	}
	rootReq := api.BuildSignatureRequirement(uint32(*threshold), [][]byte{rootKeyID[:]})
	targetsReq := api.BuildSignatureRequirement(uint32(*threshold), [][]byte{targetsKeyID[:]})

	rm := api.BuildRootMetadata(uint32(*rootVersion), keys, rootReq, targetsReq)
	rmBytes := rm.Bytes()

	digest, err := cryptoprim.SHA256(bytes.NewReader(rmBytes))
	if err != nil {
		return nil, err
	}
	sig, err := cryptoprim.SignRaw(rootPriv, digest)
	if err != nil {
		return nil, err
	}
	return api.BuildSignedRootMetadata(rmBytes, []*wire.Builder{api.BuildSignature(rootKeyID[:], sig)}), nil
}

func publicKeyID(pub *ecdsa.PublicKey) [cryptoprim.DigestSize]byte {
	return cryptoprim.KeyID("ecdsa", "p256-sha256-raw", marshalPub(pub))
}

func marshalPub(pub *ecdsa.PublicKey) []byte {
	return elliptic.Marshal(elliptic.P256(), pub.X, pub.Y)
}

func resolveKeys() (rootPrivKey, targetsPrivKey *ecdsa.PrivateKey, err error) {
	if *generateKeys {
		rp, rpub, err := cryptoprim.GenerateKeyPair()
		if err != nil {
			return nil, nil, err
		}
		tp, tpub, err := cryptoprim.GenerateKeyPair()
		if err != nil {
			return nil, nil, err
		}
		glog.Infof("generated root private key (keep this safe): %x", rp.D.Bytes())
		glog.Infof("generated root public key: %x", rpub)
		glog.Infof("generated targets private key (keep this safe): %x", tp.D.Bytes())
		glog.Infof("generated targets public key: %x", tpub)
		return rp, tp, nil
	}
	rp, err := parsePrivateKeyHex(*rootPrivHex)
	if err != nil {
		return nil, nil, fmt.Errorf("--root_priv: %w", err)
	}
	tp, err := parsePrivateKeyHex(*targetsPriv)
	if err != nil {
		return nil, nil, fmt.Errorf("--targets_priv: %w", err)
	}
	return rp, tp, nil
}

func parsePrivateKeyHex(s string) (*ecdsa.PrivateKey, error) {
	d, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	curve := elliptic.P256()
	priv := new(ecdsa.PrivateKey)
	priv.Curve = curve
	priv.D = new(big.Int).SetBytes(d)
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d)
	return priv, nil
}

func validateFlags() error {
	var errs []string
	checkEmpty := func(n, s string) {
		if s == "" {
			errs = append(errs, fmt.Sprintf("--%s can't be empty", n))
		}
	}
	checkEmpty("targets_dir", *targetsDir)
	checkEmpty("out", *out)
	if !*generateKeys {
		checkEmpty("root_priv", *rootPrivHex)
		checkEmpty("targets_priv", *targetsPriv)
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n"))
	}
	return nil
}
