// Package lds implements the Logical Data Structure's TLV-encoded files:
// the outer-tag-plus-content wrapper shared by every data group, DG1 (MRZ),
// the DG11/DG12 additional-detail groups, DG14's SecurityInfos and the
// EF.COM file. It builds directly on tlv and asn1x rather than introducing
// its own parser, the same way cbeff and sod reuse the same substrate for
// their own nested containers.
package lds

import (
	"fmt"

	"emrtd/tlv"
)

// MalformedError reports a structural failure decoding an LDS file's outer
// TLV or its content.
type MalformedError struct{ Reason string }

func (e *MalformedError) Error() string { return fmt.Sprintf("lds: malformed: %s", e.Reason) }

// decodeOuter parses data as a single top-level LDS file TLV and asserts its
// outer tag, returning the constructed node so callers can walk Children
// directly. Every LDS file tag (0x60-0x7F) is
// application-class and constructed, so a single definite-length decode
// always yields a node whose Children already are the content's own TLVs.
func decodeOuter(data []byte, want tlv.Tag) (tlv.Node, error) {
	node, rest, err := tlv.Decode(data)
	if err != nil {
		return tlv.Node{}, err
	}
	if len(rest) != 0 {
		return tlv.Node{}, &MalformedError{Reason: "trailing bytes after outer TLV"}
	}
	if err := tlv.ExpectTag(node, want); err != nil {
		return tlv.Node{}, err
	}
	return node, nil
}

// decodeTagList reads a 5C tag-list DO's content: a bare concatenation of
// tag identifier octets (no length/value per entry, unlike an ordinary
// TLV), packed into the uint16 form tlv.TagFromUint16 expects.
func decodeTagList(data []byte) ([]uint16, error) {
	var tags []uint16
	i := 0
	for i < len(data) {
		start := i
		first := data[i]
		i++
		if first&0x1F == 0x1F {
			for i < len(data) && data[i]&0x80 != 0 {
				i++
			}
			if i >= len(data) {
				return nil, &MalformedError{Reason: "truncated tag in 5C tag list"}
			}
			i++
		}
		raw := data[start:i]
		var v uint16
		for _, b := range raw {
			v = v<<8 | uint16(b)
		}
		tags = append(tags, v)
	}
	return tags, nil
}

func encodeTagList(tags []uint16) []byte {
	var out []byte
	for _, t := range tags {
		if t > 0xFF {
			out = append(out, byte(t>>8))
		}
		out = append(out, byte(t))
	}
	return out
}

var tagListTag = tlv.TagFromUint16(0x5C)
