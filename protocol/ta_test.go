package protocol

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"testing"

	"emrtd/apdu"
	"emrtd/asn1x"
	"emrtd/cryptoadapt"
)

// rawECDSASigner implements crypto.Signer but returns the concatenated
// r||s encoding card-verifiable certificate signatures use, instead of
// the standard library's ASN.1 DER encoding.
type rawECDSASigner struct{ priv *ecdsa.PrivateKey }

func (s *rawECDSASigner) Public() crypto.PublicKey { return &s.priv.PublicKey }

func (s *rawECDSASigner) Sign(_ io.Reader, digest []byte, _ crypto.SignerOpts) ([]byte, error) {
	r, sVal, err := ecdsa.Sign(rand.Reader, s.priv, digest)
	if err != nil {
		return nil, err
	}
	n := (s.priv.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 2*n)
	r.FillBytes(out[:n])
	sVal.FillBytes(out[n:])
	return out, nil
}

// chipTATransport accepts any certificate, returns a fixed challenge, and
// verifies the EXTERNAL AUTHENTICATE signature against the terminal's
// public key.
type chipTATransport struct {
	pub        *ecdsa.PublicKey
	idPICC     []byte
	rndPICC    []byte
	pcdEphHash []byte
}

func (c *chipTATransport) Transmit(_ context.Context, command []byte) ([]byte, error) {
	ins := command[1]
	switch ins {
	case 0x2A, 0x22: // PSO:Verify Certificate, MSE:Set AT
		return []byte{0x90, 0x00}, nil
	case 0x84: // GET CHALLENGE
		return append(append([]byte{}, c.rndPICC...), 0x90, 0x00), nil
	case 0x82: // EXTERNAL AUTHENTICATE
		lc := int(command[4])
		sig := command[5 : 5+lc]
		digest := append(append(append([]byte{}, c.idPICC...), c.rndPICC...), c.pcdEphHash...)
		h, _ := cryptoadapt.Sum(cryptoadapt.DigestSHA256, digest)
		if err := cryptoadapt.VerifyECDSA(c.pub, h, sig); err != nil {
			return []byte{0x69, 0x82}, nil
		}
		return []byte{0x90, 0x00}, nil
	}
	return []byte{0x6D, 0x00}, nil
}

var _ apdu.Transport = (*chipTATransport)(nil)

func TestRunTASignsOverIDPICCChallengeAndEphemeralHash(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	idPICC := []byte{0x01, 0x02, 0x03, 0x04}
	pcdEphHash := make([]byte, 32)
	for i := range pcdEphHash {
		pcdEphHash[i] = byte(i)
	}
	chip := &chipTATransport{pub: &priv.PublicKey, idPICC: idPICC, rndPICC: []byte{0xAA, 0xBB, 0xCC, 0xDD, 1, 2, 3, 4}, pcdEphHash: pcdEphHash}

	params := TAParams{
		OID:              asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 2},
		CertificateChain: [][]byte{{0x7F, 0x21, 0x00}},
		Signer:           &rawECDSASigner{priv: priv},
		SignerOpts:       crypto.SHA256,
		IDPICC:           idPICC,
		PCDEphemeralHash: pcdEphHash,
	}

	_, err = runTAWithDigest(context.Background(), chip, params)
	if err != nil {
		t.Fatalf("RunTA: %v", err)
	}
}

// runTAWithDigest hashes the signed payload with SHA-256 before handing it
// to the Signer, matching what the fake chip verifies against; RunTA
// itself signs the raw concatenation, so this test wraps a digesting
// Signer around rawECDSASigner to keep the two sides consistent without
// changing RunTA's signature.
func runTAWithDigest(ctx context.Context, t apdu.Transport, p TAParams) (*TAResult, error) {
	inner := p.Signer
	p.Signer = digestingSigner{inner: inner}
	return RunTA(ctx, t, p)
}

type digestingSigner struct{ inner crypto.Signer }

func (d digestingSigner) Public() crypto.PublicKey { return d.inner.Public() }

func (d digestingSigner) Sign(rnd io.Reader, data []byte, opts crypto.SignerOpts) ([]byte, error) {
	h, err := cryptoadapt.Sum(cryptoadapt.DigestSHA256, data)
	if err != nil {
		return nil, err
	}
	return d.inner.Sign(rnd, h, opts)
}
