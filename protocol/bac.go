package protocol

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"fmt"

	"emrtd/apdu"
	"emrtd/cryptoadapt"
	"emrtd/sm"
)

// BACKey is the three MRZ fields Basic Access Control derives K_seed from.
// Equality is structural: two BACKeys built from the same document are
// interchangeable regardless of how they were parsed.
type BACKey struct {
	DocumentNumber string // right-padded with '<' to at least 9 characters
	DateOfBirth    string // YYMMDD
	DateOfExpiry   string // YYMMDD
}

// mrzCheckDigit implements the Doc 9303 check-digit algorithm: weights
// 7,3,1 cycling over the field, digits map to their value, letters to
// 10+ord(letter)-ord('A'), '<' maps to 0.
func mrzCheckDigit(field string) byte {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(field); i++ {
		sum += charValue(field[i]) * weights[i%3]
	}
	return byte('0' + sum%10)
}

func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default: // '<' and anything else not valid in an MRZ
		return 0
	}
}

func padDocumentNumber(docNum string) string {
	for len(docNum) < 9 {
		docNum += "<"
	}
	return docNum
}

// MRZInformation builds the 24-character MRZ_information string BAC's
// K_seed is hashed from: docNumber||checkDigit||dob||checkDigit||doe||
// checkDigit. PACE's MRZ password type hashes this same string (see
// paceKSeed), so it is exported rather than kept private to this file.
func (k BACKey) MRZInformation() string {
	doc := padDocumentNumber(k.DocumentNumber)
	return doc + string(mrzCheckDigit(doc)) +
		k.DateOfBirth + string(mrzCheckDigit(k.DateOfBirth)) +
		k.DateOfExpiry + string(mrzCheckDigit(k.DateOfExpiry))
}

// KSeed returns K_seed = SHA1(MRZ_information)[0:16].
func (k BACKey) KSeed() []byte {
	h := sha1.Sum([]byte(k.MRZInformation()))
	return h[:16]
}

// BACResult is the outcome of a successful Basic Access Control run: the
// Secure Messaging session installed with the derived keys, ready for
// every subsequent APDU exchange.
type BACResult struct {
	Session *sm.Session
}

// RunBAC drives the BAC state machine to completion: GET CHALLENGE,
// build and MUTUAL AUTHENTICATE, verify the returned nonces, and derive
// the session keys. States progress
// Init -> ChallengeSent -> MutualAuthenticated.
func RunBAC(ctx context.Context, t apdu.Transport, key BACKey) (*BACResult, error) {
	kSeed := key.KSeed()
	kEnc, err := sm.DeriveKey(cryptoadapt.Cipher3DES, 16, kSeed, sm.KeyTypeEnc)
	if err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}
	kMac, err := sm.DeriveKey(cryptoadapt.Cipher3DES, 16, kSeed, sm.KeyTypeMac)
	if err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}

	rndICC, err := getChallenge(ctx, t)
	if err != nil {
		return nil, fail("BAC", StageGetChallenge, err)
	}

	rndIFD := make([]byte, 8)
	if _, err := rand.Read(rndIFD); err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}
	kIFD := make([]byte, 16)
	if _, err := rand.Read(kIFD); err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}

	plaintext := append(append(append([]byte{}, rndIFD...), rndICC...), kIFD...)
	eIFD, err := cryptoadapt.EncryptCBC(cryptoadapt.Cipher3DES, kEnc, make([]byte, 8), plaintext)
	if err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}
	key24 := expand3DESKey(kMac)
	mIFD, err := cryptoadapt.RetailMAC(key24, cryptoadapt.PadISO9797Method2(eIFD, 8))
	if err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}

	cmdData := append(append([]byte{}, eIFD...), mIFD...)
	le := byte(0x28)
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x82, P1: 0x00, P2: 0x00, Data: cmdData, Le: &le})
	if err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}
	if err := resp.Err(); err != nil {
		return nil, &BACMutualAuthFailed{Cause: err}
	}
	if len(resp.Data) != 40 {
		return nil, &BACMutualAuthFailed{Cause: fmt.Errorf("MUTUAL AUTHENTICATE response has %d bytes, want 40", len(resp.Data))}
	}
	eICC, mICC := resp.Data[:32], resp.Data[32:]

	expectedMAC, err := cryptoadapt.RetailMAC(key24, cryptoadapt.PadISO9797Method2(eICC, 8))
	if err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}
	if !cryptoadapt.ConstantTimeCompare(expectedMAC, mICC) {
		return nil, &BACMutualAuthFailed{Cause: fmt.Errorf("response MAC mismatch")}
	}

	plainICC, err := cryptoadapt.DecryptCBC(cryptoadapt.Cipher3DES, kEnc, make([]byte, 8), eICC)
	if err != nil {
		return nil, &BACMutualAuthFailed{Cause: err}
	}
	rndICC2, rndIFD2, kICC := plainICC[:8], plainICC[8:16], plainICC[16:32]
	if !cryptoadapt.ConstantTimeCompare(rndICC2, rndICC) {
		return nil, &BACMutualAuthFailed{Cause: fmt.Errorf("RND.ICC echoed back does not match")}
	}
	if !cryptoadapt.ConstantTimeCompare(rndIFD2, rndIFD) {
		return nil, &BACMutualAuthFailed{Cause: fmt.Errorf("RND.IFD echoed back does not match")}
	}

	sessionSeed := xorBytes(kIFD, kICC)
	sessKEnc, err := sm.DeriveKey(cryptoadapt.Cipher3DES, 16, sessionSeed, sm.KeyTypeEnc)
	if err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}
	sessKMac, err := sm.DeriveKey(cryptoadapt.Cipher3DES, 16, sessionSeed, sm.KeyTypeMac)
	if err != nil {
		return nil, fail("BAC", StageMutualAuthenticate, err)
	}

	initialSSC := append(append([]byte{}, rndICC[4:8]...), rndIFD[4:8]...)
	session := sm.NewSession(cryptoadapt.Cipher3DES, sessKEnc, sessKMac, initialSSC)
	return &BACResult{Session: session}, nil
}

func getChallenge(ctx context.Context, t apdu.Transport) ([]byte, error) {
	le := byte(0x08)
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x84, P1: 0x00, P2: 0x00, Le: &le})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if len(resp.Data) != 8 {
		return nil, fmt.Errorf("GET CHALLENGE returned %d bytes, want 8", len(resp.Data))
	}
	return resp.Data, nil
}

func expand3DESKey(k []byte) []byte {
	if len(k) == 16 {
		out := make([]byte, 24)
		copy(out[0:16], k)
		copy(out[16:24], k[0:8])
		return out
	}
	return k
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
