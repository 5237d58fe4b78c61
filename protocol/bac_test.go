package protocol

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"emrtd/apdu"
	"emrtd/cryptoadapt"
	"emrtd/sm"
)

func TestBACKeySeedWorkedExample(t *testing.T) {
	// Doc 9303 Part 11 Appendix D.2 worked example.
	key := BACKey{DocumentNumber: "L898902C<", DateOfBirth: "690806", DateOfExpiry: "940623"}
	want, _ := hex.DecodeString("239AB9CB282DAF66231DC5A4DF6BFBAE")
	if got := key.KSeed(); !bytes.Equal(got, want) {
		t.Errorf("KSeed() = %X, want %X", got, want)
	}
}

func TestMRZCheckDigit(t *testing.T) {
	tests := []struct {
		field string
		want  byte
	}{
		{"L898902C<", '3'},
		{"690806", '1'},
		{"940623", '6'},
	}
	for _, tc := range tests {
		if got := mrzCheckDigit(tc.field); got != tc.want {
			t.Errorf("mrzCheckDigit(%q) = %c, want %c", tc.field, got, tc.want)
		}
	}
}

// chipBACTransport simulates the PICC side of BAC: it answers GET
// CHALLENGE with a fixed nonce and computes a correct MUTUAL AUTHENTICATE
// response from the keys derived from the same BACKey, so RunBAC's full
// round trip (encrypt/decrypt, MAC/verify, session key agreement) is
// exercised against a cooperating peer rather than a canned byte string.
type chipBACTransport struct {
	kEnc, kMac []byte
	rndICC     []byte
	kICC       []byte
	tamperMAC  bool
}

func (c *chipBACTransport) Transmit(_ context.Context, command []byte) ([]byte, error) {
	ins := command[1]
	switch ins {
	case 0x84: // GET CHALLENGE
		return append(append([]byte{}, c.rndICC...), 0x90, 0x00), nil
	case 0x82: // MUTUAL AUTHENTICATE
		body := command[5 : len(command)-1] // strip header and Le
		eIFD, mIFD := body[:32], body[32:40]
		key24 := expand3DESKey(c.kMac)
		wantMAC, err := cryptoadapt.RetailMAC(key24, cryptoadapt.PadISO9797Method2(eIFD, 8))
		if err != nil {
			return nil, err
		}
		if !cryptoadapt.ConstantTimeCompare(wantMAC, mIFD) {
			return []byte{0x69, 0x82}, nil
		}
		plain, err := cryptoadapt.DecryptCBC(cryptoadapt.Cipher3DES, c.kEnc, make([]byte, 8), eIFD)
		if err != nil {
			return nil, err
		}
		rndIFD, rndICC2, kIFD := plain[0:8], plain[8:16], plain[16:32]
		_ = rndICC2
		respPlain := append(append(append([]byte{}, c.rndICC...), rndIFD...), c.kICC...)
		eICC, err := cryptoadapt.EncryptCBC(cryptoadapt.Cipher3DES, c.kEnc, make([]byte, 8), respPlain)
		if err != nil {
			return nil, err
		}
		mICC, err := cryptoadapt.RetailMAC(key24, cryptoadapt.PadISO9797Method2(eICC, 8))
		if err != nil {
			return nil, err
		}
		if c.tamperMAC {
			mICC[0] ^= 0xFF
		}
		_ = kIFD
		out := append(append([]byte{}, eICC...), mICC...)
		return append(out, 0x90, 0x00), nil
	}
	return []byte{0x6D, 0x00}, nil
}

func newChipBACTransport(key BACKey) *chipBACTransport {
	kSeed := key.KSeed()
	kEnc, _ := sm.DeriveKey(cryptoadapt.Cipher3DES, 16, kSeed, sm.KeyTypeEnc)
	kMac, _ := sm.DeriveKey(cryptoadapt.Cipher3DES, 16, kSeed, sm.KeyTypeMac)
	return &chipBACTransport{
		kEnc:   kEnc,
		kMac:   kMac,
		rndICC: []byte{0x4F, 0x8C, 0xF1, 0x95, 0x0A, 0x3A, 0x3B, 0x7D},
		kICC:   []byte{0xC6, 0x86, 0xE0, 0x91, 0x94, 0x66, 0x94, 0x22, 0x42, 0xC6, 0x07, 0x79, 0x0B, 0x31, 0x34, 0x55},
	}
}

func TestRunBACRoundTrip(t *testing.T) {
	key := BACKey{DocumentNumber: "L898902C<", DateOfBirth: "690806", DateOfExpiry: "940623"}
	tr := newChipBACTransport(key)

	result, err := RunBAC(context.Background(), tr, key)
	if err != nil {
		t.Fatalf("RunBAC: %v", err)
	}
	if result.Session == nil {
		t.Fatal("expected a non-nil Secure Messaging session")
	}
}

func TestRunBACRejectsTamperedResponseMAC(t *testing.T) {
	key := BACKey{DocumentNumber: "L898902C<", DateOfBirth: "690806", DateOfExpiry: "940623"}
	tr := newChipBACTransport(key)
	tr.tamperMAC = true

	_, err := RunBAC(context.Background(), tr, key)
	if err == nil {
		t.Fatal("expected an error for a tampered response MAC")
	}
	var bacErr *BACMutualAuthFailed
	if !asBACMutualAuthFailed(err, &bacErr) {
		t.Errorf("error = %v, want *BACMutualAuthFailed", err)
	}
}

func asBACMutualAuthFailed(err error, target **BACMutualAuthFailed) bool {
	for err != nil {
		if e, ok := err.(*BACMutualAuthFailed); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func TestGetChallengeRejectsWrongLength(t *testing.T) {
	tr := &scriptedTransport{responses: [][]byte{{1, 2, 3, 0x90, 0x00}}}
	_, err := getChallenge(context.Background(), tr)
	if err == nil {
		t.Fatal("expected an error for a short GET CHALLENGE response")
	}
}

// scriptedTransport replays a fixed sequence of raw responses.
type scriptedTransport struct {
	responses [][]byte
	i         int
}

func (s *scriptedTransport) Transmit(_ context.Context, command []byte) ([]byte, error) {
	if s.i >= len(s.responses) {
		return []byte{0x6F, 0x00}, nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

var _ apdu.Transport = (*scriptedTransport)(nil)
var _ apdu.Transport = (*chipBACTransport)(nil)
