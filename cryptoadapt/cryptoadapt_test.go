package cryptoadapt

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/hex"
	"math/big"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture %q: %v", s, err)
	}
	return b
}

func TestPadUnpadISO9797Method2(t *testing.T) {
	in := []byte{1, 2, 3}
	padded := PadISO9797Method2(in, 8)
	if len(padded) != 8 {
		t.Fatalf("padded length = %d, want 8", len(padded))
	}
	back, err := UnpadISO9797Method2(padded)
	if err != nil {
		t.Fatalf("UnpadISO9797Method2: %v", err)
	}
	if !bytes.Equal(back, in) {
		t.Errorf("round trip = %X, want %X", back, in)
	}
}

// AES-CMAC test vectors from RFC 4493 §4, under key
// 2b7e151628aed2a6abf7158809cf4f3c.
func TestAESCMACRFC4493Vectors(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	tests := []struct {
		name string
		msg  string
		mac  string
	}{
		{"empty", "", "bb1d6929e95937287fa37d129b756746"},
		{"16 bytes", "6bc1bee22e409f96e93d7e117393172a", "070a16b46b4d4144f79bdd9dd04a287c"},
		{
			"40 bytes",
			"6bc1bee22e409f96e93d7e117393172a" +
				"ae2d8a571e03ac9c9eb76fac45af8e51" +
				"30c81c46a35ce411",
			"dfa66747de9ae63030ca32611497c827",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := mustHex(t, tc.msg)
			want := mustHex(t, tc.mac)
			got, err := AESCMAC(key, msg)
			if err != nil {
				t.Fatalf("AESCMAC: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("AESCMAC() = %X, want %X", got, want)
			}
		})
	}
}

func TestRetailMACRoundTripStability(t *testing.T) {
	key := mustHex(t, "0102030405060708090A0B0C0D0E0F10")
	key24 := expandTo3DESKey(key)
	data := PadISO9797Method2([]byte("secure messaging"), 8)
	mac1, err := RetailMAC(key24, data)
	if err != nil {
		t.Fatalf("RetailMAC: %v", err)
	}
	mac2, err := RetailMAC(key24, data)
	if err != nil {
		t.Fatalf("RetailMAC: %v", err)
	}
	if !bytes.Equal(mac1, mac2) {
		t.Errorf("RetailMAC not deterministic")
	}
	if len(mac1) != 8 {
		t.Errorf("RetailMAC length = %d, want 8", len(mac1))
	}
	changed := append([]byte{}, data...)
	changed[0] ^= 0xFF
	mac3, err := RetailMAC(key24, changed)
	if err != nil {
		t.Fatalf("RetailMAC: %v", err)
	}
	if bytes.Equal(mac1, mac3) {
		t.Errorf("RetailMAC did not change when input changed")
	}
}

func TestEncryptDecryptCBCRoundTrip(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	iv := make([]byte, 16)
	data := PadISO9797Method2([]byte("hello, chip"), 16)
	ct, err := EncryptCBC(CipherAES, key, iv, data)
	if err != nil {
		t.Fatalf("EncryptCBC: %v", err)
	}
	pt, err := DecryptCBC(CipherAES, key, iv, ct)
	if err != nil {
		t.Fatalf("DecryptCBC: %v", err)
	}
	if !bytes.Equal(pt, data) {
		t.Errorf("round trip = %X, want %X", pt, data)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{1, 2, 3}
	c := []byte{1, 2, 4}
	if !ConstantTimeCompare(a, b) {
		t.Errorf("expected equal")
	}
	if ConstantTimeCompare(a, c) {
		t.Errorf("expected not equal")
	}
}

// signISO9796 builds an ISO/IEC 9796-2 scheme 1 representative (header
// byte, random pad, SHA-1 hash, 0xBC trailer) and raises it to the
// private exponent, mirroring the representative VerifyRSAISO9796 expects.
func signISO9796(t *testing.T, priv *rsa.PrivateKey, message []byte) []byte {
	t.Helper()
	k := (priv.N.BitLen() + 7) / 8
	hashLen := sha1.Size
	padLen := k - 2 - hashLen
	pad := make([]byte, padLen)
	if _, err := rand.Read(pad); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	h := sha1.New()
	h.Write(pad)
	h.Write(message)
	sum := h.Sum(nil)

	representative := make([]byte, k)
	representative[0] = 0x4A
	copy(representative[1:], pad)
	copy(representative[1+padLen:], sum)
	representative[k-1] = 0xBC

	m := new(big.Int).SetBytes(representative)
	sig := new(big.Int).Exp(m, priv.D, priv.N)
	sb := sig.Bytes()
	if len(sb) < k {
		padded := make([]byte, k)
		copy(padded[k-len(sb):], sb)
		sb = padded
	}
	return sb
}

func TestVerifyRSAISO9796RoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	message := []byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4}
	sig := signISO9796(t, priv, message)

	if err := VerifyRSAISO9796(&priv.PublicKey, DigestSHA1, message, sig); err != nil {
		t.Fatalf("VerifyRSAISO9796: %v", err)
	}
}

func TestVerifyRSAISO9796RejectsTamperedMessage(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	message := []byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4}
	sig := signISO9796(t, priv, message)

	tampered := append([]byte{}, message...)
	tampered[0] ^= 0xFF
	if err := VerifyRSAISO9796(&priv.PublicKey, DigestSHA1, tampered, sig); err == nil {
		t.Error("expected an error for a signature over a different challenge")
	}
}
