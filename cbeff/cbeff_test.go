package cbeff

import (
	"bytes"
	"testing"

	"emrtd/tlv"
)

func buildSimpleGroup(header, bdb []byte) []byte {
	w := tlv.NewWriter()
	w.BeginConstructed(tlv.TagFromUint16(0x7F61))
	w.EmitPrimitive(tlv.TagFromUint16(0x02), []byte{0x01})
	w.BeginConstructed(tlv.TagFromUint16(0x7F60))
	w.EmitPrimitive(tlv.TagFromUint16(0xA1), header)
	w.EmitPrimitive(tlv.TagFromUint16(0x5F2E), bdb)
	w.ValueEnd()
	w.ValueEnd()
	return w.Bytes()
}

func TestDecodeEncodeBITGroupRoundTrip(t *testing.T) {
	header := []byte{0x80, 0x02, 0x01, 0x01}
	bdb := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	in := buildSimpleGroup(header, bdb)

	bits, err := DecodeBITGroup(in)
	if err != nil {
		t.Fatalf("DecodeBITGroup: %v", err)
	}
	if len(bits) != 1 {
		t.Fatalf("got %d BITs, want 1", len(bits))
	}
	if !bytes.Equal(bits[0].Header, header) {
		t.Errorf("Header = %X, want %X", bits[0].Header, header)
	}
	if !bytes.Equal(bits[0].BDB, bdb) {
		t.Errorf("BDB = %X, want %X", bits[0].BDB, bdb)
	}
	if bits[0].Kind != BDBKindISO19794 {
		t.Errorf("Kind = %v, want ISO19794", bits[0].Kind)
	}

	out := EncodeBITGroup(bits)
	if !bytes.Equal(out, in) {
		t.Errorf("round trip mismatch:\n got  %X\n want %X", out, in)
	}
}

func TestStaticallyProtectedEncryptedHeaderDenied(t *testing.T) {
	w := tlv.NewWriter()
	w.BeginConstructed(tlv.TagFromUint16(0x7F61))
	w.EmitPrimitive(tlv.TagFromUint16(0x02), []byte{0x01})
	w.BeginConstructed(tlv.TagFromUint16(0x7F60))
	w.BeginConstructed(tlv.TagFromUint16(0x7D))
	w.EmitPrimitive(tlv.TagFromUint16(0x85), []byte{0x01, 0x02})
	w.ValueEnd()
	w.EmitPrimitive(tlv.TagFromUint16(0x5F2E), []byte{0xAA})
	w.ValueEnd()
	w.ValueEnd()

	_, err := DecodeBITGroup(w.Bytes())
	if err == nil {
		t.Fatalf("expected AccessDeniedError")
	}
	if _, ok := err.(*AccessDeniedError); !ok {
		t.Errorf("got %T, want *AccessDeniedError", err)
	}
}

func TestStaticallyProtectedPlainHeaderAccepted(t *testing.T) {
	w := tlv.NewWriter()
	w.BeginConstructed(tlv.TagFromUint16(0x7F61))
	w.EmitPrimitive(tlv.TagFromUint16(0x02), []byte{0x01})
	w.BeginConstructed(tlv.TagFromUint16(0x7F60))
	w.BeginConstructed(tlv.TagFromUint16(0x7D))
	w.EmitPrimitive(tlv.TagFromUint16(0x81), []byte{0x11, 0x22})
	w.EmitPrimitive(tlv.TagFromUint16(0x8E), []byte{0, 0, 0, 0, 0, 0, 0, 0})
	w.ValueEnd()
	w.EmitPrimitive(tlv.TagFromUint16(0x5F2E), []byte{0xAA})
	w.ValueEnd()
	w.ValueEnd()

	bits, err := DecodeBITGroup(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeBITGroup: %v", err)
	}
	if !bytes.Equal(bits[0].Header, []byte{0x11, 0x22}) {
		t.Errorf("Header = %X, want 1122", bits[0].Header)
	}
}
