package protocol

import (
	"context"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"math/big"

	"emrtd/apdu"
	"emrtd/asn1x"
	"emrtd/cryptoadapt"
	"emrtd/sm"
	"emrtd/tlv"
)

// Mapping selects which of PACE's three ephemeral-domain-parameter
// derivations a run uses: Generic Mapping (EC(DH) point
// addition), Integrated Mapping (pseudo-random point derived from the
// nonce) or Chip-Authentication Mapping (GM plus PICC's CA static key
// folded into the final authentication token).
type Mapping int

const (
	MappingGM Mapping = iota
	MappingIM
	MappingCAM
)

// PasswordType selects which PACE password-reference value (MRZ-derived,
// CAN, PIN or PUK) MSE:Set AT names in its 0x83 data object.
type PasswordType byte

const (
	PasswordMRZ PasswordType = 0x01
	PasswordCAN PasswordType = 0x02
	PasswordPIN PasswordType = 0x03
	PasswordPUK PasswordType = 0x04
)

// PACEParams selects the protocol OID, cipher/key length and mapping a
// PACE run uses, and supplies the EC domain parameters (this
// implementation covers EC Generic/Chip-Authentication Mapping directly;
// Integrated Mapping uses a simplified pseudo-random point derivation
// rather than the full ICART algorithm - see DESIGN.md).
type PACEParams struct {
	OID       asn1x.OID
	Cipher    cryptoadapt.Cipher
	KeyLen    int
	Mapping   Mapping
	Curve     elliptic.Curve
	Password  PasswordType
	Secret    []byte // the password bytes (MRZ_information, CAN, or PIN digits)
	PICCCAKey *ECPoint // only used for MappingCAM: the PICC's static Chip Authentication public key
}

// ECPoint is an uncompressed elliptic-curve point.
type ECPoint struct{ X, Y *big.Int }

// PACEResult is the outcome of a successful PACE run.
type PACEResult struct {
	Session      *sm.Session
	EphemeralPCD ECPoint // PK_PCD,2, needed by Chip Authentication/CAM binding
}

// RunPACE drives the PACE state machine to completion. States progress
// Init -> EncryptedNonceFetched -> MappingDone -> KeyAgreementDone ->
// MutualAuthenticated.
func RunPACE(ctx context.Context, t apdu.Transport, p PACEParams) (*PACEResult, error) {
	if err := mseSetATPACE(ctx, t, p.OID, p.Password); err != nil {
		return nil, fail("PACE", StageMSESetAT, err)
	}

	kSeed := paceKSeed(p.Password, p.Secret)
	kPi, err := sm.DeriveKey(p.Cipher, p.KeyLen, kSeed, sm.KeyTypePACE)
	if err != nil {
		return nil, fail("PACE", StageGeneralAuthenticate, err)
	}

	encNonce, err := generalAuthenticateGetEncryptedNonce(ctx, t)
	if err != nil {
		return nil, fail("PACE", StageGeneralAuthenticate, err)
	}
	nonce, err := cryptoadapt.DecryptCBC(p.Cipher, kPi, make([]byte, p.Cipher.BlockSize()), encNonce)
	if err != nil {
		return nil, fail("PACE", StageGeneralAuthenticate, err)
	}

	curve := p.Curve
	// Mapping step: exchange ephemeral mapping keys, derive the mapped
	// generator G'.
	mapKeyPair, err := cryptoadapt.GenerateEC(curve)
	if err != nil {
		return nil, fail("PACE", StageGeneralAuthenticate, err)
	}
	dMap, pkMapPCD := mapKeyPair.D, ECPoint{X: mapKeyPair.X, Y: mapKeyPair.Y}
	pkMapPICC, err := generalAuthenticateMapNonce(ctx, t, encodeECPoint(curve, pkMapPCD))
	if err != nil {
		return nil, fail("PACE", StageGeneralAuthenticate, err)
	}
	piccMapPoint, err := decodeECPoint(curve, pkMapPICC)
	if err != nil {
		return nil, fail("PACE", StageGeneralAuthenticate, err)
	}
	if !curve.IsOnCurve(piccMapPoint.X, piccMapPoint.Y) {
		return nil, fail("PACE", StageGeneralAuthenticate, fmt.Errorf("PICC mapping public key not on curve"))
	}
	hX, hY := curve.ScalarMult(piccMapPoint.X, piccMapPoint.Y, dMap.Bytes())

	var gX, gY *big.Int
	switch p.Mapping {
	case MappingGM, MappingCAM:
		sX, sY := curve.ScalarMult(curve.Params().Gx, curve.Params().Gy, nonce)
		gX, gY = curve.Add(sX, sY, hX, hY)
	case MappingIM:
		// Simplified pseudo-random point derivation: hash the nonce and the
		// shared mapping point into a scalar and multiply the base point by
		// it, then fold in H the same way GM does. This reaches the same
		// "unpredictable G'" property IM's pseudo-random function gives but
		// does not reproduce TR-03110's bit-exact ICART mapping.
		scalar := new(big.Int).SetBytes(hashToScalar(curve, nonce, hX, hY))
		sX, sY := curve.ScalarMult(curve.Params().Gx, curve.Params().Gy, scalar.Bytes())
		gX, gY = curve.Add(sX, sY, hX, hY)
	default:
		return nil, fail("PACE", StageGeneralAuthenticate, fmt.Errorf("unknown mapping %d", p.Mapping))
	}

	// Key agreement step: fresh ephemeral key pair on the mapped generator.
	d2, err := rand.Int(rand.Reader, curve.Params().N)
	if err != nil {
		return nil, fail("PACE", StageKeyAgreement, err)
	}
	pk2X, pk2Y := curve.ScalarMult(gX, gY, d2.Bytes())
	pk2PCD := ECPoint{X: pk2X, Y: pk2Y}

	pk2PICCBytes, err := generalAuthenticateKeyAgreement(ctx, t, encodeECPoint(curve, pk2PCD))
	if err != nil {
		return nil, fail("PACE", StageKeyAgreement, err)
	}
	pk2PICC, err := decodeECPoint(curve, pk2PICCBytes)
	if err != nil {
		return nil, fail("PACE", StageKeyAgreement, err)
	}
	sharedX, err := cryptoadapt.ECDH(curve, d2, pk2PICC.X, pk2PICC.Y)
	if err != nil {
		return nil, fail("PACE", StageKeyAgreement, err)
	}
	sessionSeed := sharedX.Bytes()

	sessKEnc, err := sm.DeriveKey(p.Cipher, p.KeyLen, sessionSeed, sm.KeyTypeEnc)
	if err != nil {
		return nil, fail("PACE", StageKeyAgreement, err)
	}
	sessKMac, err := sm.DeriveKey(p.Cipher, p.KeyLen, sessionSeed, sm.KeyTypeMac)
	if err != nil {
		return nil, fail("PACE", StageKeyAgreement, err)
	}

	// Mutual authentication: each side MACs the encoded public key element
	// it received from the other, per TR-03110's authentication token.
	macInputPCD := encodeOIDTaggedPublicKey(p.OID, encodeECPoint(curve, pk2PICC))
	if p.Mapping == MappingCAM && p.PICCCAKey != nil {
		macInputPCD = append(macInputPCD, encodeECPoint(curve, *p.PICCCAKey)...)
	}
	tPCD, err := computeToken(p.Cipher, sessKMac, macInputPCD)
	if err != nil {
		return nil, fail("PACE", StageMutualAuthenticate, err)
	}

	tPICC, err := generalAuthenticateMutualAuth(ctx, t, tPCD)
	if err != nil {
		return nil, fail("PACE", StageMutualAuthenticate, err)
	}

	macInputPICD := encodeOIDTaggedPublicKey(p.OID, encodeECPoint(curve, pk2PCD))
	if p.Mapping == MappingCAM && p.PICCCAKey != nil {
		macInputPICD = append(macInputPICD, encodeECPoint(curve, *p.PICCCAKey)...)
	}
	expectedTPICC, err := computeToken(p.Cipher, sessKMac, macInputPICD)
	if err != nil {
		return nil, fail("PACE", StageMutualAuthenticate, err)
	}
	if !cryptoadapt.ConstantTimeCompare(expectedTPICC, tPICC) {
		return nil, &PACEMutualAuthFailed{Cause: fmt.Errorf("T_PICC does not match")}
	}

	session := sm.NewSession(p.Cipher, sessKEnc, sessKMac, nil)
	return &PACEResult{Session: session, EphemeralPCD: pk2PCD}, nil
}

// paceKSeed derives K_seed for the password reference type in use: MRZ
// passwords are SHA-1 hashed like BAC's K_seed, while CAN/PIN/PUK are used
// as raw digit bytes directly (TR-03110 §4.3.1: only the MRZ-derived
// password is hashed before use as K_seed).
func paceKSeed(pt PasswordType, secret []byte) []byte {
	if pt == PasswordMRZ {
		h := sha1.Sum(secret)
		return h[:16]
	}
	return secret
}

func hashToScalar(curve elliptic.Curve, nonce []byte, hX, hY *big.Int) []byte {
	h := sha1.New()
	h.Write(nonce)
	h.Write(hX.Bytes())
	h.Write(hY.Bytes())
	return h.Sum(nil)
}

// encodeECPoint renders an EC point in the uncompressed SEC1 form (0x04
// prefix, then fixed-width X and Y), the form PACE's mapping/key-agreement
// data objects and CV certificate public keys carry.
func encodeECPoint(curve elliptic.Curve, p ECPoint) []byte {
	return elliptic.Marshal(curve, p.X, p.Y)
}

func decodeECPoint(curve elliptic.Curve, data []byte) (ECPoint, error) {
	x, y := elliptic.Unmarshal(curve, data)
	if x == nil {
		return ECPoint{}, fmt.Errorf("malformed uncompressed EC point")
	}
	return ECPoint{X: x, Y: y}, nil
}

// encodeOIDTaggedPublicKey builds the small TLV structure (OID + raw
// public point, both tagged) the PACE authentication token MACs, modeled
// on the same OID+value public-key encoding CV certificates use.
func encodeOIDTaggedPublicKey(oid asn1x.OID, point []byte) []byte {
	n := tlv.Node{
		Tag: tlv.TagFromUint16(0x7F49),
		Children: []tlv.Node{
			asn1x.EncodeOID(oid),
			{Tag: tlv.TagFromUint16(0x86), Value: point},
		},
	}
	return n.Encode()
}

func computeToken(c cryptoadapt.Cipher, kMac, data []byte) ([]byte, error) {
	switch c {
	case cryptoadapt.Cipher3DES:
		key24 := expand3DESKey(kMac)
		return cryptoadapt.RetailMAC(key24, cryptoadapt.PadISO9797Method2(data, 8))
	case cryptoadapt.CipherAES:
		full, err := cryptoadapt.AESCMAC(kMac, data)
		if err != nil {
			return nil, err
		}
		return full[:8], nil
	default:
		return nil, &cryptoadapt.UnsupportedAlgorithmError{Algorithm: "PACE token cipher"}
	}
}

// mseSetATPACE builds MSE:Set AT for PACE (P1=0xC1, P2=0xA4): data object
// 0x80 carries the protocol OID, 0x83 the one-byte password reference
// (MRZ/CAN/PIN/PUK), per TR-03110's MSE:Set AT command data for PACE.
func mseSetATPACE(ctx context.Context, t apdu.Transport, oid asn1x.OID, pw PasswordType) error {
	fields := []tlv.Node{
		{Tag: tlv.TagFromUint16(0x80), Value: asn1x.EncodeOID(oid).Encode()},
		{Tag: tlv.TagFromUint16(0x83), Value: []byte{byte(pw)}},
	}
	var buf []byte
	for _, f := range fields {
		buf = append(buf, f.Encode()...)
	}
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x22, P1: 0xC1, P2: 0xA4, Data: buf})
	if err != nil {
		return err
	}
	return resp.Err()
}

func generalAuthenticateGetEncryptedNonce(ctx context.Context, t apdu.Transport) ([]byte, error) {
	// Empty dynamic authentication data (7C 00) requests the encrypted
	// nonce in return.
	req := tlv.Node{Tag: tlv.TagFromUint16(0x7C)}.Encode()
	le := byte(0x00)
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x10, INS: 0x86, P1: 0x00, P2: 0x00, Data: req, Le: &le})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return extractDynamicAuthData(resp.Data, 0x80)
}

func generalAuthenticateMapNonce(ctx context.Context, t apdu.Transport, mappingData []byte) ([]byte, error) {
	inner := tlv.Node{Tag: tlv.TagFromUint16(0x81), Value: mappingData}
	req := tlv.Node{Tag: tlv.TagFromUint16(0x7C), Children: []tlv.Node{inner}}.Encode()
	le := byte(0x00)
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x10, INS: 0x86, P1: 0x00, P2: 0x00, Data: req, Le: &le})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return extractDynamicAuthData(resp.Data, 0x82)
}

func generalAuthenticateKeyAgreement(ctx context.Context, t apdu.Transport, pk []byte) ([]byte, error) {
	inner := tlv.Node{Tag: tlv.TagFromUint16(0x83), Value: pk}
	req := tlv.Node{Tag: tlv.TagFromUint16(0x7C), Children: []tlv.Node{inner}}.Encode()
	le := byte(0x00)
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x10, INS: 0x86, P1: 0x00, P2: 0x00, Data: req, Le: &le})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return extractDynamicAuthData(resp.Data, 0x84)
}

func generalAuthenticateMutualAuth(ctx context.Context, t apdu.Transport, tPCD []byte) ([]byte, error) {
	inner := tlv.Node{Tag: tlv.TagFromUint16(0x85), Value: tPCD}
	req := tlv.Node{Tag: tlv.TagFromUint16(0x7C), Children: []tlv.Node{inner}}.Encode()
	le := byte(0x00)
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x86, P1: 0x00, P2: 0x00, Data: req, Le: &le})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return extractDynamicAuthData(resp.Data, 0x86)
}

func extractDynamicAuthData(data []byte, innerTag uint16) ([]byte, error) {
	node, rest, err := tlv.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing bytes after dynamic authentication data")
	}
	if node.Tag.Uint16() != 0x7C {
		return nil, fmt.Errorf("expected dynamic authentication data object 7C, got %X", node.Tag.Bytes())
	}
	inner, ok := node.Find(uint32(innerTag & 0x1F))
	if !ok {
		for _, c := range node.Children {
			if c.Tag.Uint16() == innerTag {
				return c.Value, nil
			}
		}
		return nil, fmt.Errorf("dynamic authentication data missing tag %02X", innerTag)
	}
	return inner.Value, nil
}
