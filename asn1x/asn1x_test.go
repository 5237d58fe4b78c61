package asn1x

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"emrtd/tlv"
)

func TestIntegerRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    int64
		hex  string
	}{
		{"small", 0x7F, "02017F"},
		{"needs pad byte", 0x80, "0202 0080"},
		{"two bytes", 0x1234, "02021234"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			want, _ := hex.DecodeString(stripSpaces(tc.hex))
			node := EncodeInteger(big.NewInt(tc.v))
			got := node.Encode()
			if !bytes.Equal(got, want) {
				t.Errorf("Encode() = %X, want %X", got, want)
			}
			back, err := DecodeInteger(node)
			if err != nil {
				t.Fatalf("DecodeInteger: %v", err)
			}
			if back.Int64() != tc.v {
				t.Errorf("DecodeInteger() = %d, want %d", back.Int64(), tc.v)
			}
		})
	}
}

func stripSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func TestOIDRoundTrip(t *testing.T) {
	// id-PACE-ECDH-GM-AES-CBC-CMAC-256.
	oid := OID{0, 4, 0, 127, 0, 7, 2, 2, 4, 2, 4}
	node := EncodeOID(oid)
	back, err := DecodeOID(node)
	if err != nil {
		t.Fatalf("DecodeOID: %v", err)
	}
	if !back.Equal(oid) {
		t.Errorf("DecodeOID() = %v, want %v", back, oid)
	}
}

func TestEncodeSetOrdersByDER(t *testing.T) {
	a := tlv.Node{Tag: Universal(TagOID, false), Value: []byte{2, 1}}
	b := tlv.Node{Tag: Universal(TagOID, false), Value: []byte{1, 1}}
	set := EncodeSet(a, b)
	if len(set.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(set.Children))
	}
	if !bytes.Equal(set.Children[0].Value, []byte{1, 1}) {
		t.Errorf("SET OF not sorted by DER encoding: %X first", set.Children[0].Value)
	}
}
