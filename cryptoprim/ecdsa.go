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

// Package cryptoprim provides the two cryptographic primitives the design
// treats as externally supplied: a one-shot streaming SHA-256, and an
// ECDSA-P256 verifier over raw (uncompressed key, r||s signature) bytes.
// Nothing here is bundle-verification-specific; it exists because a
// standalone module has no pw_crypto to depend on.
package cryptoprim

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"math/big"

	"github.com/usbarmory/armory-bundle-verify/status"
)

// KeySize is the length in bytes of an uncompressed SEC1 P-256 public key
// (0x04 prefix + 32-byte X + 32-byte Y).
const KeySize = 65

// SignatureSize is the length in bytes of a raw P-256 signature (32-byte r
// concatenated with 32-byte s).
const SignatureSize = 64

// DigestSize is the length in bytes of a SHA-256 digest.
const DigestSize = sha256.Size

// SHA256 streams r and returns its digest, matching the
// sha256(stream) -> 32B primitive. Signature verification re-derives
// this once per call rather than holding an in-progress hash across
// suspended reads.
func SHA256(r io.Reader) ([DigestSize]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [DigestSize]byte{}, status.Wrap(status.Decode, "hash stream: %v", err)
	}
	var out [DigestSize]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// VerifyECDSAP256 checks a raw r||s signature over digest using an
// uncompressed SEC1 public key. It never returns an error for a bad
// signature — only false — matching ecdsa_p256_verify's Ok|Err being a
// decode/usage failure, not "signature didn't match".
func VerifyECDSAP256(pubKey []byte, digest [DigestSize]byte, sig []byte) (bool, error) {
	if len(pubKey) != KeySize {
		return false, status.Wrap(status.Internal, "public key is %d bytes, want %d", len(pubKey), KeySize)
	}
	if len(sig) != SignatureSize {
		return false, status.Wrap(status.Internal, "signature is %d bytes, want %d", len(sig), SignatureSize)
	}
	if pubKey[0] != 0x04 {
		return false, status.Wrap(status.Internal, "public key missing uncompressed-point prefix")
	}

	curve := elliptic.P256()
	x, y := elliptic.Unmarshal(curve, pubKey)
	if x == nil {
		return false, status.Wrap(status.Internal, "public key is not a valid P-256 point")
	}
	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])

	return ecdsa.Verify(pub, digest[:], r, s), nil
}

// GenerateKeyPair returns a fresh P-256 key pair in the raw wire formats
// used above: a 65-byte uncompressed public key and the *ecdsa.PrivateKey
// to sign with. It exists for tests and the create_bundle tool, never for
// verification.
func GenerateKeyPair() (*ecdsa.PrivateKey, []byte, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, status.Wrap(status.Internal, "generate key: %v", err)
	}
	pub := elliptic.Marshal(elliptic.P256(), priv.PublicKey.X, priv.PublicKey.Y)
	return priv, pub, nil
}

// SignRaw produces a raw r||s signature over digest, the counterpart to
// VerifyECDSAP256.
func SignRaw(priv *ecdsa.PrivateKey, digest [DigestSize]byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, status.Wrap(status.Internal, "sign: %v", err)
	}
	out := make([]byte, SignatureSize)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}

// KeyID derives the SHA-256-based fingerprint the design calls key_id:
// SHA256(keyType ∥ keyScheme ∥ keyValue). The verifier never recomputes
// this — the caller is assumed to derive it correctly; this helper exists for key-issuing tools
// and tests that must build correct bundles.
func KeyID(keyType, keyScheme string, keyValue []byte) [DigestSize]byte {
	h := sha256.New()
	h.Write([]byte(keyType))
	h.Write([]byte(keyScheme))
	h.Write(keyValue)
	var out [DigestSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
