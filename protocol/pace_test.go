package protocol

import (
	"context"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"
	"testing"

	"emrtd/apdu"
	"emrtd/asn1x"
	"emrtd/cryptoadapt"
	"emrtd/sm"
	"emrtd/tlv"
)

func TestEncodeDecodeECPointRoundTrip(t *testing.T) {
	curve := elliptic.P256()
	kp, err := cryptoadapt.GenerateEC(curve)
	if err != nil {
		t.Fatalf("GenerateEC: %v", err)
	}
	encoded := encodeECPoint(curve, ECPoint{X: kp.X, Y: kp.Y})
	decoded, err := decodeECPoint(curve, encoded)
	if err != nil {
		t.Fatalf("decodeECPoint: %v", err)
	}
	if decoded.X.Cmp(kp.X) != 0 || decoded.Y.Cmp(kp.Y) != 0 {
		t.Errorf("round trip mismatch: got (%x,%x), want (%x,%x)", decoded.X, decoded.Y, kp.X, kp.Y)
	}
}

func TestExtractDynamicAuthData(t *testing.T) {
	node := tlv.Node{
		Tag: tlv.TagFromUint16(0x7C),
		Children: []tlv.Node{
			{Tag: tlv.TagFromUint16(0x80), Value: []byte{1, 2, 3}},
		},
	}
	got, err := extractDynamicAuthData(node.Encode(), 0x80)
	if err != nil {
		t.Fatalf("extractDynamicAuthData: %v", err)
	}
	if string(got) != "\x01\x02\x03" {
		t.Errorf("got %X, want 010203", got)
	}
}

func TestComputeTokenAESTruncatesToEightBytes(t *testing.T) {
	key := make([]byte, 16)
	tok, err := computeToken(cryptoadapt.CipherAES, key, []byte("some public key bytes"))
	if err != nil {
		t.Fatalf("computeToken: %v", err)
	}
	if len(tok) != 8 {
		t.Errorf("token length = %d, want 8", len(tok))
	}
}

// chipPACETransport simulates the PICC side of a PACE-GM run over P-256
// with AES-128, cooperating with RunPACE's sequence of GENERAL
// AUTHENTICATE exchanges so the full ceremony (nonce exchange, mapping,
// key agreement, mutual authentication) is driven end to end.
type chipPACETransport struct {
	curve  elliptic.Curve
	kPi    []byte
	nonce  []byte
	dMap   *big.Int
	gX, gY *big.Int
	d2     *big.Int
	pk2X   *big.Int
	pk2Y   *big.Int
	pcdPK2 ECPoint
}

func (c *chipPACETransport) Transmit(_ context.Context, command []byte) ([]byte, error) {
	ins := command[1]
	if ins == 0x22 { // MSE:Set AT
		return []byte{0x90, 0x00}, nil
	}
	// GENERAL AUTHENTICATE: command = CLA INS P1 P2 Lc Data Le
	lc := int(command[4])
	data := command[5 : 5+lc]
	node, _, err := tlv.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(node.Children) == 0 {
		// Step 1: return the encrypted nonce.
		c.nonce = make([]byte, 16)
		if _, err := rand.Read(c.nonce); err != nil {
			return nil, err
		}
		enc, err := cryptoadapt.EncryptCBC(cryptoadapt.CipherAES, c.kPi, make([]byte, 16), c.nonce)
		if err != nil {
			return nil, err
		}
		return wrapDynAuth(0x80, enc), nil
	}
	switch node.Children[0].Tag.Uint16() {
	case 0x81:
		pcdMapPub, err := decodeECPoint(c.curve, node.Children[0].Value)
		if err != nil {
			return nil, err
		}
		var kp *cryptoadapt.ECKeyPair
		kp, err = cryptoadapt.GenerateEC(c.curve)
		if err != nil {
			return nil, err
		}
		c.dMap = kp.D
		hX, err := cryptoadapt.ECDH(c.curve, kp.D, pcdMapPub.X, pcdMapPub.Y)
		if err != nil {
			return nil, err
		}
		_, hY := c.curve.ScalarMult(pcdMapPub.X, pcdMapPub.Y, kp.D.Bytes())
		sX, sY := c.curve.ScalarMult(c.curve.Params().Gx, c.curve.Params().Gy, c.nonce)
		c.gX, c.gY = c.curve.Add(sX, sY, hX, hY)
		return wrapDynAuth(0x82, encodeECPoint(c.curve, ECPoint{X: kp.X, Y: kp.Y})), nil
	case 0x83:
		pcdPK2, err := decodeECPoint(c.curve, node.Children[0].Value)
		if err != nil {
			return nil, err
		}
		c.pcdPK2 = pcdPK2
		d2, err := rand.Int(rand.Reader, c.curve.Params().N)
		if err != nil {
			return nil, err
		}
		c.d2 = d2
		c.pk2X, c.pk2Y = c.curve.ScalarMult(c.gX, c.gY, d2.Bytes())
		return wrapDynAuth(0x84, encodeECPoint(c.curve, ECPoint{X: c.pk2X, Y: c.pk2Y})), nil
	case 0x85:
		sharedX, err := cryptoadapt.ECDH(c.curve, c.d2, c.pcdPK2.X, c.pcdPK2.Y)
		if err != nil {
			return nil, err
		}
		kMac, err := sm.DeriveKey(cryptoadapt.CipherAES, 16, sharedX.Bytes(), sm.KeyTypeMac)
		if err != nil {
			return nil, err
		}
		macInput := encodeOIDTaggedPublicKey(paceTestOID, encodeECPoint(c.curve, c.pcdPK2))
		tPICC, err := computeToken(cryptoadapt.CipherAES, kMac, macInput)
		if err != nil {
			return nil, err
		}
		return wrapDynAuth(0x86, tPICC), nil
	}
	return []byte{0x6A, 0x80}, nil
}

func wrapDynAuth(tag uint16, value []byte) []byte {
	n := tlv.Node{Tag: tlv.TagFromUint16(0x7C), Children: []tlv.Node{{Tag: tlv.TagFromUint16(tag), Value: value}}}
	return append(n.Encode(), 0x90, 0x00)
}

var paceTestOID = asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 4, 2, 2}

func TestRunPACEGenericMappingRoundTrip(t *testing.T) {
	curve := elliptic.P256()
	secret := []byte("123456")
	kSeed := paceKSeed(PasswordCAN, secret)
	kPi, err := sm.DeriveKey(cryptoadapt.CipherAES, 16, kSeed, sm.KeyTypePACE)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	chip := &chipPACETransport{curve: curve, kPi: kPi}

	params := PACEParams{
		OID:      paceTestOID,
		Cipher:   cryptoadapt.CipherAES,
		KeyLen:   16,
		Mapping:  MappingGM,
		Curve:    curve,
		Password: PasswordCAN,
		Secret:   secret,
	}
	result, err := RunPACE(context.Background(), chip, params)
	if err != nil {
		t.Fatalf("RunPACE: %v", err)
	}
	if result.Session == nil {
		t.Fatal("expected a non-nil Secure Messaging session")
	}
}

var _ apdu.Transport = (*chipPACETransport)(nil)
