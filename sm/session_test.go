package sm

import (
	"bytes"
	"testing"

	"emrtd/apdu"
	"emrtd/cryptoadapt"
	"emrtd/tlv"
)

func fixedKeys3DES() (kEnc, kMac []byte) {
	return bytes.Repeat([]byte{0x11}, 16), bytes.Repeat([]byte{0x22}, 16)
}

func TestWrapUnwrapRoundTrip3DES(t *testing.T) {
	kEnc, kMac := fixedKeys3DES()
	initiator := NewSession(cryptoadapt.Cipher3DES, kEnc, kMac, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	responder := NewSession(cryptoadapt.Cipher3DES, kEnc, kMac, []byte{0, 0, 0, 0, 0, 0, 0, 1})

	le := byte(0x00)
	cmd := apdu.Command{CLA: 0x00, INS: 0xB0, P1: 0x00, P2: 0x00, Le: &le}
	wrapped, err := initiator.Wrap(cmd)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if wrapped.CLA&0x0C == 0 {
		t.Errorf("wrapped CLA does not set SM bits: %02X", wrapped.CLA)
	}

	// Simulate the chip's response: build DO99+DO87+DO8E from the
	// responder side so Unwrap can be exercised symmetrically.
	plainData := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	sw := []byte{0x90, 0x00}

	// Advance responder's SSC to match what it would be after seeing the
	// wrapped command (Unwrap always increments first).
	respAPDU := buildTestResponse(t, responder, plainData, sw)

	out, err := initiator.Unwrap(respAPDU)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(out.Data, plainData) {
		t.Errorf("Data = %X, want %X", out.Data, plainData)
	}
	if out.SW1 != 0x90 || out.SW2 != 0x00 {
		t.Errorf("SW = %02X%02X, want 9000", out.SW1, out.SW2)
	}
}

// buildTestResponse encrypts and MACs a response the way a chip would,
// using the same session state (so SSC lines up) but computed independently
// of Session.Wrap/Unwrap to keep the round trip test honest.
func buildTestResponse(t *testing.T, s *Session, data, sw []byte) apdu.Response {
	t.Helper()
	s.incrementSSC() // mirrors the card unwrapping the incoming command
	s.incrementSSC() // mirrors the card wrapping its own response

	bs := s.Cipher.BlockSize()
	iv, err := s.encIV()
	if err != nil {
		t.Fatalf("encIV: %v", err)
	}
	padded := cryptoadapt.PadISO9797Method2(data, bs)
	ct, err := cryptoadapt.EncryptCBC(s.Cipher, s.KEnc, iv, padded)
	if err != nil {
		t.Fatalf("EncryptCBC: %v", err)
	}
	do87 := tlv.Node{Tag: tlv.TagFromUint16(0x87), Value: append([]byte{0x01}, ct...)}
	do99 := tlv.Node{Tag: tlv.TagFromUint16(0x99), Value: sw}

	var macInput []byte
	macInput = append(macInput, s.ssc...)
	macInput = append(macInput, do87.Encode()...)
	macInput = append(macInput, do99.Encode()...)
	macInput = cryptoadapt.PadISO9797Method2(macInput, bs)
	mac, err := s.computeMAC(macInput)
	if err != nil {
		t.Fatalf("computeMAC: %v", err)
	}
	do8E := tlv.Node{Tag: tlv.TagFromUint16(0x8E), Value: mac}

	var body []byte
	body = append(body, do87.Encode()...)
	body = append(body, do99.Encode()...)
	body = append(body, do8E.Encode()...)
	return apdu.Response{Data: body, SW1: 0x90, SW2: 0x00}
}

func TestUnwrapDetectsTamperedMAC(t *testing.T) {
	kEnc, kMac := fixedKeys3DES()
	initiator := NewSession(cryptoadapt.Cipher3DES, kEnc, kMac, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	responder := NewSession(cryptoadapt.Cipher3DES, kEnc, kMac, []byte{0, 0, 0, 0, 0, 0, 0, 1})

	le := byte(0x00)
	if _, err := initiator.Wrap(apdu.Command{CLA: 0x00, INS: 0xB0, Le: &le}); err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	resp := buildTestResponse(t, responder, []byte{1, 2, 3, 4}, []byte{0x90, 0x00})
	resp.Data[len(resp.Data)-1] ^= 0xFF // flip last byte of DO8E

	if _, err := initiator.Unwrap(resp); err == nil {
		t.Fatalf("expected MAC mismatch error")
	}
	if !initiator.dead {
		t.Errorf("session should be terminated after a MAC mismatch")
	}
	if _, err := initiator.Unwrap(resp); err == nil {
		t.Errorf("expected terminated-session error on reuse")
	}
}

func TestDeriveKeyFixesDESParity(t *testing.T) {
	seed := bytes.Repeat([]byte{0x7A}, 16)
	key, err := DeriveKey(cryptoadapt.Cipher3DES, 16, seed, KeyTypeEnc)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if len(key) != 16 {
		t.Fatalf("key length = %d, want 16", len(key))
	}
	for _, b := range key {
		parity := byte(0)
		for bit := 0; bit < 8; bit++ {
			parity ^= (b >> uint(bit)) & 1
		}
		if parity != 1 {
			t.Errorf("byte %02X does not have odd parity", b)
		}
	}
}
