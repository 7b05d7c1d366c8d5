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
	"github.com/golang/glog"

	"github.com/usbarmory/armory-bundle-verify/api"
	"github.com/usbarmory/armory-bundle-verify/cryptoprim"
	"github.com/usbarmory/armory-bundle-verify/status"
	"github.com/usbarmory/armory-bundle-verify/wire"
)

// VerifySignatures checks message against sigs, requiring at least
// requirement.Threshold distinct signatures (deduplicated by key_id) from
// keys listed in requirement.AllowedKeyIDs and present in keys.
//
// Returns status.NotFound if sigs is empty — the sentinel a caller uses to
// distinguish an unsigned bundle from a malformed one during self-verify —
// or status.Unauthenticated if signatures are present but threshold was
// not reached.
func VerifySignatures(message wire.Interval, sigs []api.Signature, requirement api.SignatureRequirement, keys api.KeyMap) error {
	threshold, err := requirement.Threshold()
	if err != nil {
		return err
	}
	allowed, err := requirement.AllowedKeyIDs()
	if err != nil {
		return err
	}

	if len(sigs) == 0 {
		return status.Wrap(status.NotFound, "no signatures present")
	}

	seen := make(map[[api.KeyIDSize]byte]bool, len(sigs))
	var verified uint32
	for _, sig := range sigs {
		keyID, err := sig.KeyID()
		if err != nil {
			return err
		}
		if !keyIDAllowed(keyID, allowed) {
			glog.V(1).Infof("skipping signature from key id %x: not in allowed key set", keyID)
			continue
		}
		if seen[keyID] {
			glog.V(1).Infof("skipping duplicate signature from key id %x", keyID)
			continue
		}

		key, ok := keys[string(keyID[:])]
		if !ok {
			glog.V(1).Infof("skipping signature from key id %x: not present in key map", keyID)
			continue
		}
		keyvalIv, err := key.Keyval()
		if err != nil {
			return err
		}
		keyval, err := keyvalIv.Bytes()
		if err != nil {
			return err
		}

		digest, err := cryptoprim.SHA256(message.Reader())
		if err != nil {
			return err
		}
		sigBytes, err := sig.Sig()
		if err != nil {
			return err
		}
		ok, err = cryptoprim.VerifyECDSAP256(keyval, digest, sigBytes[:])
		if err != nil {
			return err
		}
		if !ok {
			glog.V(1).Infof("signature from key id %x did not verify", keyID)
			continue
		}

		seen[keyID] = true
		verified++
		if verified == threshold {
			return nil
		}
	}

	return status.Wrap(status.Unauthenticated, "verified %d of %d required signatures", verified, threshold)
}

func keyIDAllowed(keyID [api.KeyIDSize]byte, allowed []wire.Interval) bool {
	for _, a := range allowed {
		ab, err := a.Bytes()
		if err != nil {
			continue
		}
		if string(ab) == string(keyID[:]) {
			return true
		}
	}
	return false
}
