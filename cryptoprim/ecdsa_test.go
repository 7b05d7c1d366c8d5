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

package cryptoprim

import (
	"bytes"
	"testing"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	digest, err := SHA256(bytes.NewReader([]byte("hello world")))
	if err != nil {
		t.Fatalf("SHA256: %v", err)
	}
	sig, err := SignRaw(priv, digest)
	if err != nil {
		t.Fatalf("SignRaw: %v", err)
	}
	ok, err := VerifyECDSAP256(pub, digest, sig)
	if err != nil {
		t.Fatalf("VerifyECDSAP256: %v", err)
	}
	if !ok {
		t.Fatalf("valid signature rejected")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	digest, err := SHA256(bytes.NewReader([]byte("hello world")))
	if err != nil {
		t.Fatalf("SHA256: %v", err)
	}
	sig, err := SignRaw(priv, digest)
	if err != nil {
		t.Fatalf("SignRaw: %v", err)
	}
	sig[0] ^= 0xff

	ok, err := VerifyECDSAP256(pub, digest, sig)
	if err != nil {
		t.Fatalf("VerifyECDSAP256: %v", err)
	}
	if ok {
		t.Fatalf("tampered signature accepted")
	}
}

func TestVerifyRejectsWrongSizedInputs(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	var digest [DigestSize]byte
	if _, err := VerifyECDSAP256(pub, digest, make([]byte, SignatureSize-1)); err == nil {
		t.Fatalf("expected error for undersized signature")
	}
	if _, err := VerifyECDSAP256(pub[:KeySize-1], digest, make([]byte, SignatureSize)); err == nil {
		t.Fatalf("expected error for undersized key")
	}
}
