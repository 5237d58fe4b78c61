package sod

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"emrtd/cryptoadapt"
)

func selfSignedRSA(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Test Document Signer"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).AddDate(10, 0, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return key, cert
}

func TestBuildParseVerifyRoundTrip(t *testing.T) {
	key, cert := selfSignedRSA(t)

	hashes := []DataGroupHash{
		{Number: 1, Hash: mustSum(t, cryptoadapt.DigestSHA256, []byte("DG1 content"))},
		{Number: 2, Hash: mustSum(t, cryptoadapt.DigestSHA256, []byte("DG2 content"))},
	}

	der, err := Build(cryptoadapt.DigestSHA256, hashes, key, SigRSAPKCS1v15, cert)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	doc, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.SecurityObject.DataGroupHashes) != 2 {
		t.Fatalf("expected 2 data group hashes, got %d", len(doc.SecurityObject.DataGroupHashes))
	}

	if err := doc.Verify(cert); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	actual := map[int][]byte{
		1: []byte("DG1 content"),
		2: []byte("DG2 content"),
	}
	if err := doc.VerifyDataGroups(actual); err != nil {
		t.Fatalf("VerifyDataGroups: %v", err)
	}
}

func TestVerifyDataGroupsDetectsTamperedContent(t *testing.T) {
	key, cert := selfSignedRSA(t)
	hashes := []DataGroupHash{
		{Number: 1, Hash: mustSum(t, cryptoadapt.DigestSHA256, []byte("DG1 content"))},
	}
	der, err := Build(cryptoadapt.DigestSHA256, hashes, key, SigRSAPKCS1v15, cert)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	doc, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	actual := map[int][]byte{1: []byte("tampered content")}
	err = doc.VerifyDataGroups(actual)
	if _, ok := err.(*MismatchedDigestError); !ok {
		t.Fatalf("expected *MismatchedDigestError, got %v (%T)", err, err)
	}
}

func TestVerifyRejectsUntrustedSigner(t *testing.T) {
	key, cert := selfSignedRSA(t)
	_, otherCert := selfSignedRSA(t)

	hashes := []DataGroupHash{{Number: 1, Hash: mustSum(t, cryptoadapt.DigestSHA256, []byte("DG1"))}}
	der, err := Build(cryptoadapt.DigestSHA256, hashes, key, SigRSAPKCS1v15, cert)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	doc, err := Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	err = doc.Verify(otherCert)
	if _, ok := err.(*UntrustedSignerError); !ok {
		t.Fatalf("expected *UntrustedSignerError, got %v (%T)", err, err)
	}
}

func TestVerifyDetectsTamperedSignature(t *testing.T) {
	key, cert := selfSignedRSA(t)
	hashes := []DataGroupHash{{Number: 1, Hash: mustSum(t, cryptoadapt.DigestSHA256, []byte("DG1"))}}
	der, err := Build(cryptoadapt.DigestSHA256, hashes, key, SigRSAPKCS1v15, cert)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// flip a byte near the end of the DER, which (with high probability
	// for a 2048-bit RSA signature) lands inside the signature octets.
	tampered := append([]byte{}, der...)
	tampered[len(tampered)-1] ^= 0xFF

	doc, err := Parse(tampered)
	if err != nil {
		// a structurally-different tampering landed outside the signature
		// bytes; that is still an acceptable detection outcome.
		return
	}
	if err := doc.Verify(cert); err == nil {
		t.Fatalf("expected tampered signature to fail verification")
	} else if !bytes.Contains([]byte(err.Error()), []byte("invalid")) {
		t.Fatalf("expected a SignatureInvalidError-shaped message, got: %v", err)
	}
}

func mustSum(t *testing.T, d cryptoadapt.Digest, data []byte) []byte {
	t.Helper()
	sum, err := cryptoadapt.Sum(d, data)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	return sum
}
