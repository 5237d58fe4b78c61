package lds

import "emrtd/tlv"

var (
	tagCOM            = tlv.TagFromUint16(0x60)
	tagLDSVersion     = tlv.TagFromUint16(0x5F01)
	tagUnicodeVersion = tlv.TagFromUint16(0x5F36)
)

// COM is the EF.COM file: the LDS and Unicode version strings plus a tag
// list of the outer file tags of the data groups present on the document.
type COM struct {
	LDSVersion     string
	UnicodeVersion string
	TagList        []uint16 // e.g. 0x61 for DG1, 0x75 for DG2
}

// DecodeCOM parses an EF.COM file: outer tag 60 wrapping 5F01 (LDS
// version), 5F36 (Unicode version) and 5C (present-DG tag list).
func DecodeCOM(data []byte) (*COM, error) {
	node, err := decodeOuter(data, tagCOM)
	if err != nil {
		return nil, err
	}
	ldsVersion, ok := node.Find(tagLDSVersion.Number)
	if !ok {
		return nil, &MalformedError{Reason: "COM missing LDS version (5F01)"}
	}
	unicodeVersion, ok := node.Find(tagUnicodeVersion.Number)
	if !ok {
		return nil, &MalformedError{Reason: "COM missing Unicode version (5F36)"}
	}
	tagListNode, ok := node.Find(tagListTag.Number)
	if !ok {
		return nil, &MalformedError{Reason: "COM missing tag list (5C)"}
	}
	tags, err := decodeTagList(tagListNode.Value)
	if err != nil {
		return nil, err
	}
	return &COM{
		LDSVersion:     string(ldsVersion.Value),
		UnicodeVersion: string(unicodeVersion.Value),
		TagList:        tags,
	}, nil
}

// Encode serialises the COM file back to its canonical BER TLV form.
func (c COM) Encode() []byte {
	w := tlv.NewWriter()
	w.BeginConstructed(tagCOM)
	// 5F01 is written byte for byte: tlv.Tag.Bytes would shorten it to 41.
	w.EmitRaw(append(append(encodeTagList([]uint16{0x5F01}), tlv.EncodeLength(len(c.LDSVersion))...), c.LDSVersion...))
	w.EmitPrimitive(tagUnicodeVersion, []byte(c.UnicodeVersion))
	w.EmitPrimitive(tagListTag, encodeTagList(c.TagList))
	w.ValueEnd()
	return w.Bytes()
}
