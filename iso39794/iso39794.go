// Package iso39794 implements the ASN.1 BER encoding of ISO/IEC 39794
// biometric records: finger ([APPLICATION 4]), face ([APPLICATION 5]) and
// iris ([APPLICATION 6]) records, each a SEQUENCE of a version block and
// a flexible "list or single" representationBlocks field. It is built on
// asn1x the way iso19794 is built on raw byte offsets - the two packages
// share no code because 39794 genuinely is a different encoding, not a
// refactor of 19794: 39794 is genuinely ASN.1 BER, not a fixed layout.
package iso39794

import (
	"fmt"

	"emrtd/asn1x"
	"emrtd/tlv"
)

// RecordKind selects the outer APPLICATION tag for a 39794 record.
type RecordKind uint32

const (
	RecordKindFinger RecordKind = 4
	RecordKindFace    RecordKind = 5
	RecordKindIris   RecordKind = 6
)

// MalformedRecordError reports a structural ASN.1 failure specific to a
// 39794 record (missing version block, representationBlocks of neither
// shape, etc).
type MalformedRecordError struct {
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("iso39794: malformed record: %s", e.Reason)
}

// LandmarkKind identifies which of the several landmark-coordinate
// SEQUENCE shapes a Landmark uses. On decode it is chosen from the number
// of fields alone (see decodeLandmark): two fields give LandmarkKind2DSigned
// and three give LandmarkKind3DUnsignedShort; LandmarkKind2DUnsignedShort
// and LandmarkKindTexture are never produced by decoding.
type LandmarkKind int

const (
	LandmarkKind2DSigned LandmarkKind = iota
	LandmarkKind2DUnsignedShort
	LandmarkKind3DUnsignedShort
	LandmarkKindTexture
)

// Landmark is one facial/finger/iris landmark coordinate, in whichever of
// the several encoded shapes it was read as.
type Landmark struct {
	Kind LandmarkKind
	X, Y, Z int64 // Z unused for 2D kinds
	U, V    int64 // used only for LandmarkKindTexture
}

func encodeLandmark(l Landmark) tlv.Node {
	switch l.Kind {
	case LandmarkKind3DUnsignedShort:
		return asn1x.EncodeSequence(
			asn1x.EncodeSignedInteger(l.X),
			asn1x.EncodeSignedInteger(l.Y),
			asn1x.EncodeSignedInteger(l.Z),
		)
	case LandmarkKindTexture:
		return asn1x.EncodeSequence(
			asn1x.EncodeSignedInteger(l.U),
			asn1x.EncodeSignedInteger(l.V),
		)
	default: // LandmarkKind2DSigned and LandmarkKind2DUnsignedShort
		return asn1x.EncodeSequence(
			asn1x.EncodeSignedInteger(l.X),
			asn1x.EncodeSignedInteger(l.Y),
		)
	}
}

// decodeLandmark selects the variant purely from how many INTEGER
// children the SEQUENCE carries: 2 -> 2D, 3 -> 3D. Texture (u,v) shares
// the 2-child shape with plain 2D coordinates; callers that know a field
// is a texture coordinate should set Kind themselves after decoding, since
// nothing in the wire encoding itself disambiguates the two 2-field
// shapes.
func decodeLandmark(n tlv.Node) (Landmark, error) {
	switch len(n.Children) {
	case 2:
		x, err := asn1x.DecodeSignedInteger(n.Children[0])
		if err != nil {
			return Landmark{}, err
		}
		y, err := asn1x.DecodeSignedInteger(n.Children[1])
		if err != nil {
			return Landmark{}, err
		}
		return Landmark{Kind: LandmarkKind2DSigned, X: x, Y: y}, nil
	case 3:
		x, _ := asn1x.DecodeSignedInteger(n.Children[0])
		y, _ := asn1x.DecodeSignedInteger(n.Children[1])
		z, _ := asn1x.DecodeSignedInteger(n.Children[2])
		return Landmark{Kind: LandmarkKind3DUnsignedShort, X: x, Y: y, Z: z}, nil
	default:
		return Landmark{}, &MalformedRecordError{Reason: fmt.Sprintf("landmark has %d fields, want 2 or 3", len(n.Children))}
	}
}
