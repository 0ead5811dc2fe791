// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package signature defines the external collaborator boundary spec.md
// §1 calls out as out of scope: "the secure-class signature-verification
// layer (a Permits/CSP wrapper over ordinary RSA+hash primitives;
// specified here only at its interface boundary)". This package is that
// interface boundary plus one concrete, teacher-grounded implementation.
package signature

import (
	"bytes"
	"crypto/x509"

	"go.mozilla.org/pkcs7"
)

// Provider is the narrow interface the trusted-attribute verifier (the
// translator's trusted.go) drives: verify(hash, signature, public_key)
// -> bool, exactly as spec.md §2 specifies for the signature provider
// collaborator.
type Provider interface {
	Verify(hash, sig, publicKey []byte) (bool, error)
}

// PKCS7Provider is the default Provider, grounded directly on the
// teacher's security.go: a DigitalSignature tag's bytes are treated as a
// PKCS7 SignedData envelope (the same go.mozilla.org/pkcs7 library
// security.go uses to verify WIN_CERTIFICATE Authenticode blobs)
// wrapping the digest, verified against an x509 certificate parsed from
// the PublicKey tag bytes.
type PKCS7Provider struct{}

// Verify implements Provider. sig is a DER-encoded PKCS7 SignedData
// envelope whose content is the digest; publicKey is a DER-encoded X.509
// certificate. It reports whether the envelope's signature validates
// against the certificate and whether its content equals hash.
func (PKCS7Provider) Verify(hash, sig, publicKey []byte) (bool, error) {
	p7, err := pkcs7.Parse(sig)
	if err != nil {
		return false, err
	}
	cert, err := x509.ParseCertificate(publicKey)
	if err != nil {
		return false, err
	}
	p7.Certificates = []*x509.Certificate{cert}
	if err := p7.Verify(); err != nil {
		return false, nil
	}
	return bytes.Equal(p7.Content, hash), nil
}

// NopProvider always reports a successful verification. Useful for
// tests and for translator configurations that disable signature
// validation entirely (spec.md's Options.DisableSignatureValidation,
// mirroring the teacher's Options.DisableCertValidation in file.go).
type NopProvider struct{}

// Verify implements Provider by always succeeding.
func (NopProvider) Verify(hash, sig, publicKey []byte) (bool, error) {
	return true, nil
}
