package protocol

import (
	"context"
	"crypto/elliptic"
	"math/big"

	"emrtd/apdu"
	"emrtd/cryptoadapt"
	"emrtd/sm"
	"emrtd/tlv"
)

// CAParams selects the PICC's static Chip Authentication public key (read
// from DG14/EF.ChipAuthentication beforehand) and the domain it lives in:
// either an elliptic curve (Curve non-nil) or classic finite-field
// Diffie-Hellman (DH non-nil). Exactly one of the two must be set.
type CAParams struct {
	Cipher cryptoadapt.Cipher
	KeyLen int
	Digest cryptoadapt.Digest

	Curve        elliptic.Curve
	PICCPublicEC ECPoint

	DH           *cryptoadapt.DHParams
	PICCPublicDH *big.Int

	PICCKeyID *int64 // present when DG14 lists more than one CA public key
}

// CAResult is the outcome of a successful Chip Authentication run: the
// replacement Secure Messaging session (installed with SSC reset to
// zero) plus the ephemeral material Terminal Authentication's challenge
// binding needs.
type CAResult struct {
	PICCKeyID     *int64
	PICCPublicKey []byte // the static public key CA was run against, re-encoded
	PCDKeyHash    []byte // digest of the PCD ephemeral public key, for TA's auxiliary data binding
	PCDPublicKey  []byte
	PCDPrivateKey *big.Int
	NewSession    *sm.Session
}

// RunCA drives Chip Authentication to completion: MSE:Set KAT conveys the
// reader's fresh ephemeral public key, both sides compute the same
// K_seed from it and the PICC's static key, and the Secure Messaging
// session is replaced with keys derived from that seed and SSC=0.
func RunCA(ctx context.Context, t apdu.Transport, p CAParams) (*CAResult, error) {
	var seed []byte
	var pcdPriv *big.Int
	var pcdPubBytes []byte

	switch {
	case p.Curve != nil:
		kp, err := cryptoadapt.GenerateEC(p.Curve)
		if err != nil {
			return nil, fail("CA", StageMSESetKAT, err)
		}
		x, err := cryptoadapt.ECDH(p.Curve, kp.D, p.PICCPublicEC.X, p.PICCPublicEC.Y)
		if err != nil {
			return nil, fail("CA", StageMSESetKAT, err)
		}
		seed = x.Bytes()
		pcdPriv = kp.D
		pcdPubBytes = encodeECPoint(p.Curve, ECPoint{X: kp.X, Y: kp.Y})
	case p.DH != nil:
		kp, err := cryptoadapt.GenerateDH(*p.DH)
		if err != nil {
			return nil, fail("CA", StageMSESetKAT, err)
		}
		shared := cryptoadapt.DH(*p.DH, kp.Private, p.PICCPublicDH)
		seed = shared.Bytes()
		pcdPriv = kp.Private
		pcdPubBytes = kp.Public.Bytes()
	default:
		return nil, fail("CA", StageMSESetKAT, errNoCAPublicKey)
	}

	if err := mseSetKAT(ctx, t, pcdPubBytes, p.PICCKeyID); err != nil {
		return nil, fail("CA", StageMSESetKAT, err)
	}

	kEnc, err := sm.DeriveKey(p.Cipher, p.KeyLen, seed, sm.KeyTypeEnc)
	if err != nil {
		return nil, fail("CA", StageKeyAgreement, err)
	}
	kMac, err := sm.DeriveKey(p.Cipher, p.KeyLen, seed, sm.KeyTypeMac)
	if err != nil {
		return nil, fail("CA", StageKeyAgreement, err)
	}

	pcdKeyHash, err := cryptoadapt.Sum(p.Digest, pcdPubBytes)
	if err != nil {
		return nil, fail("CA", StageKeyAgreement, err)
	}

	var piccPublicEncoded []byte
	if p.Curve != nil {
		piccPublicEncoded = encodeECPoint(p.Curve, p.PICCPublicEC)
	} else {
		piccPublicEncoded = p.PICCPublicDH.Bytes()
	}

	session := sm.NewSession(p.Cipher, kEnc, kMac, nil)
	return &CAResult{
		PICCKeyID:     p.PICCKeyID,
		PICCPublicKey: piccPublicEncoded,
		PCDKeyHash:    pcdKeyHash,
		PCDPublicKey:  pcdPubBytes,
		PCDPrivateKey: pcdPriv,
		NewSession:    session,
	}, nil
}

// mseSetKAT sends MSE:Set KAT (P1=0x41, P2=0xA6): data object 0x91 carries
// the reader's ephemeral public key, 0x84 the optional key id selecting
// which of several PICC static CA keys DG14 advertised.
func mseSetKAT(ctx context.Context, t apdu.Transport, pcdPub []byte, keyID *int64) error {
	fields := []tlv.Node{{Tag: tlv.TagFromUint16(0x91), Value: pcdPub}}
	if keyID != nil {
		fields = append(fields, tlv.Node{Tag: tlv.TagFromUint16(0x84), Value: encodeKeyID(*keyID)})
	}
	var buf []byte
	for _, f := range fields {
		buf = append(buf, f.Encode()...)
	}
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x22, P1: 0x41, P2: 0xA6, Data: buf})
	if err != nil {
		return err
	}
	return resp.Err()
}

func encodeKeyID(id int64) []byte {
	if id == 0 {
		return []byte{0}
	}
	var b []byte
	u := uint64(id)
	for u > 0 {
		b = append([]byte{byte(u)}, b...)
		u >>= 8
	}
	return b
}

type errString string

func (e errString) Error() string { return string(e) }

const errNoCAPublicKey = errString("Chip Authentication requires either an EC or a DH static public key")
