// Package cbeff implements the CBEFF/BIT-group codec (ISO/IEC 7816-11)
// used to wrap ISO 19794/39794 biometric records inside DG2/DG3/DG4: a
// 7F61 BIT group containing a count and that many 7F60 Biometric
// Information Templates, each pairing a header template with a Biometric
// Data Block, using a recursive tlv.Node walk over the BIT-group's fixed
// tag vocabulary.
package cbeff

import (
	"fmt"

	"emrtd/tlv"
)

// AccessDeniedError is returned when a statically-protected BIT carries an
// encrypted biometric data object (tag 85): this codec has no key material
// to decrypt it, and the attempt must fail closed rather than silently
// skip the block.
type AccessDeniedError struct{}

func (e *AccessDeniedError) Error() string { return "cbeff: encrypted BDB requires access not granted" }

// BDBKind identifies which ASN.1/fixed-layout decoder a Biometric Data
// Block's content should be handed to, selected by the BDB's own tag.
type BDBKind int

const (
	BDBKindISO19794 BDBKind = iota // tag 5F2E, primitive
	BDBKindISO39794                // tag 7F2E, constructed
)

// BIT is one Biometric Information Template: a header template plus its
// Biometric Data Block, in their CBEFF-wrapped raw form. The header
// template's inner fields (format owner, format type, etc.) are not
// further decoded here; only the statically-protected SM envelope (A1/A2
// vs 7D) is unwrapped, since nothing above this layer needs the header
// fields themselves.
type BIT struct {
	Header []byte  // raw header template content (A1/A2, or the 81 payload if 7D-wrapped)
	BDB    []byte  // raw biometric data block content
	Kind   BDBKind // which outer tag (5F2E vs 7F2E) selected the BDB decoder
}

// DecodeBITGroup parses a 7F61 BIT group: an inner 02 length-1 count,
// followed by that many 7F60 BITs.
func DecodeBITGroup(data []byte) ([]BIT, error) {
	node, rest, err := tlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("cbeff: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("cbeff: %d trailing bytes after BIT group", len(rest))
	}
	if node.Tag.Uint16() != 0x7F61 {
		return nil, &tlv.UnexpectedTagError{Expected: tlv.TagFromUint16(0x7F61), Found: node.Tag}
	}

	countNode, ok := node.Find(0x02)
	if !ok {
		return nil, fmt.Errorf("cbeff: BIT group missing count (tag 02)")
	}
	if len(countNode.Value) != 1 {
		return nil, fmt.Errorf("cbeff: BIT count field must be 1 byte")
	}
	count := int(countNode.Value[0])

	var bits []BIT
	for _, child := range node.Children {
		if child.Tag.Uint16() != 0x7F60 {
			continue
		}
		b, err := decodeBIT(child)
		if err != nil {
			return nil, err
		}
		bits = append(bits, b)
	}
	if len(bits) != count {
		return nil, fmt.Errorf("cbeff: BIT group declared %d BITs, found %d", count, len(bits))
	}
	return bits, nil
}

func decodeBIT(n tlv.Node) (BIT, error) {
	var header []byte
	var bdbNode *tlv.Node
	var kind BDBKind

	for _, c := range n.Children {
		switch c.Tag.Uint16() {
		case 0xA1, 0xA2:
			// A1/A2 are constructed, so their content was parsed into
			// Children; re-encode them to recover the raw content bytes.
			header = nil
			for _, f := range c.Children {
				header = append(header, f.Encode()...)
			}
		case 0x7D:
			h, err := decodeStaticallyProtected(c)
			if err != nil {
				return BIT{}, err
			}
			header = h
		case 0x5F2E:
			v := c
			bdbNode = &v
			kind = BDBKindISO19794
		case 0x7F2E:
			v := c
			bdbNode = &v
			kind = BDBKindISO39794
		}
	}
	if bdbNode == nil {
		return BIT{}, fmt.Errorf("cbeff: BIT has no recognised BDB (5F2E/7F2E)")
	}

	bdbContent := bdbNode.Value
	if kind == BDBKindISO39794 {
		// The 7F2E constructed BDB wraps its ASN.1 record in an A1.
		inner, ok := bdbNode.Find(0xA1)
		if !ok {
			return BIT{}, fmt.Errorf("cbeff: 7F2E BDB missing A1 wrapper")
		}
		bdbContent = inner.Encode()
	}

	return BIT{Header: header, BDB: bdbContent, Kind: kind}, nil
}

// decodeStaticallyProtected reads the nested SM data objects under a 7D
// header template: 81 (plain header, accepted), 85 (encrypted header,
// rejected since this codec has no SM session to decrypt it with), 8E
// (MAC, skipped - verified by the caller's SM layer if at all) and 9E
// (signature, skipped).
func decodeStaticallyProtected(n tlv.Node) ([]byte, error) {
	var plain []byte
	for _, c := range n.Children {
		switch c.Tag.Uint16() {
		case 0x81:
			plain = c.Value
		case 0x85:
			return nil, &AccessDeniedError{}
		case 0x8E, 0x9E:
			// authenticated but not independently re-verified here
		}
	}
	if plain == nil {
		return nil, fmt.Errorf("cbeff: 7D header has no plain (81) content")
	}
	return plain, nil
}

// EncodeBITGroup serialises bits back into a canonical 7F61 BIT group.
func EncodeBITGroup(bits []BIT) []byte {
	w := tlv.NewWriter()
	w.BeginConstructed(tlv.TagFromUint16(0x7F61))
	w.EmitPrimitive(tlv.TagFromUint16(0x02), []byte{byte(len(bits))})
	for _, b := range bits {
		w.BeginConstructed(tlv.TagFromUint16(0x7F60))
		w.EmitPrimitive(tlv.TagFromUint16(0xA1), b.Header)
		switch b.Kind {
		case BDBKindISO19794:
			w.EmitPrimitive(tlv.TagFromUint16(0x5F2E), b.BDB)
		case BDBKindISO39794:
			w.BeginConstructed(tlv.TagFromUint16(0x7F2E))
			w.EmitRaw(b.BDB) // b.BDB already carries its own A1 wrapper
			w.ValueEnd()
		}
		w.ValueEnd()
	}
	w.ValueEnd()
	return w.Bytes()
}
