package lds

import (
	"bytes"
	"testing"

	"emrtd/asn1x"
)

func TestDG14RoundTripMixedSecurityInfos(t *testing.T) {
	keyID := int64(1)
	infos := []SecurityInfo{
		ActiveAuthenticationInfo{
			Protocol:           asn1x.OID{2, 23, 136, 1, 1, 5},
			Version:            1,
			SignatureAlgorithm: asn1x.OID{1, 2, 840, 10045, 4, 3, 2},
		},
		TerminalAuthenticationInfo{
			Protocol: asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 2},
			Version:  1,
		},
		PACEInfo{
			Protocol: asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 4, 2, 2},
			Version:  2,
		},
		ChipAuthenticationInfo{
			Protocol: asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 3, 2, 1},
			Version:  1,
			KeyID:    &keyID,
		},
	}

	encoded := EncodeDG14(infos)
	decoded, err := DecodeDG14(encoded)
	if err != nil {
		t.Fatalf("DecodeDG14: %v", err)
	}
	if len(decoded) != len(infos) {
		t.Fatalf("got %d SecurityInfos, want %d", len(decoded), len(infos))
	}

	var sawAA, sawTA, sawPACE, sawCA bool
	for _, info := range decoded {
		switch v := info.(type) {
		case ActiveAuthenticationInfo:
			sawAA = true
			if !v.Protocol.Equal(asn1x.OID{2, 23, 136, 1, 1, 5}) || v.Version != 1 {
				t.Errorf("ActiveAuthenticationInfo = %+v", v)
			}
		case TerminalAuthenticationInfo:
			sawTA = true
			if v.Version != 1 {
				t.Errorf("TerminalAuthenticationInfo = %+v", v)
			}
		case PACEInfo:
			sawPACE = true
			if v.Version != 2 || v.ParameterID != nil {
				t.Errorf("PACEInfo = %+v", v)
			}
		case ChipAuthenticationInfo:
			sawCA = true
			if v.Version != 1 || v.KeyID == nil || *v.KeyID != 1 {
				t.Errorf("ChipAuthenticationInfo = %+v", v)
			}
		default:
			t.Errorf("unexpected SecurityInfo variant %T", v)
		}
	}
	if !sawAA || !sawTA || !sawPACE || !sawCA {
		t.Errorf("missing a variant in decoded output: aa=%v ta=%v pace=%v ca=%v", sawAA, sawTA, sawPACE, sawCA)
	}

	if !bytes.Equal(EncodeDG14(decoded), EncodeDG14(infos)) {
		t.Errorf("re-encoding the decoded SecurityInfos does not reproduce the original DER")
	}
}

func TestDG14ChipAuthenticationPublicKeyInfo(t *testing.T) {
	// A minimal SubjectPublicKeyInfo-shaped SEQUENCE stands in for a real EC
	// point here; only its re-encodability is under test.
	spki := asn1x.EncodeSequence(asn1x.EncodeOID(asn1x.OID{1, 2, 840, 10045, 2, 1})).Encode()

	info := ChipAuthenticationPublicKeyInfo{
		Protocol:  asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 3, 2},
		PublicKey: spki,
	}
	encoded := EncodeDG14([]SecurityInfo{info})
	decoded, err := DecodeDG14(encoded)
	if err != nil {
		t.Fatalf("DecodeDG14: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("got %d SecurityInfos, want 1", len(decoded))
	}
	got, ok := decoded[0].(ChipAuthenticationPublicKeyInfo)
	if !ok {
		t.Fatalf("decoded variant = %T, want ChipAuthenticationPublicKeyInfo", decoded[0])
	}
	if !bytes.Equal(got.PublicKey, spki) {
		t.Errorf("PublicKey = %X, want %X", got.PublicKey, spki)
	}
}

func TestDG14UnrecognisedOIDDecodesGeneric(t *testing.T) {
	info := GenericSecurityInfo{
		Protocol:     asn1x.OID{1, 2, 3, 4, 5},
		RequiredData: asn1x.EncodeSignedInteger(7).Encode(),
	}
	decoded, err := DecodeDG14(EncodeDG14([]SecurityInfo{info}))
	if err != nil {
		t.Fatalf("DecodeDG14: %v", err)
	}
	if _, ok := decoded[0].(GenericSecurityInfo); !ok {
		t.Fatalf("decoded variant = %T, want GenericSecurityInfo", decoded[0])
	}
}
