package lds

import "emrtd/tlv"

// Tags for the handful of DG11/DG12 fields this package names directly; the
// rest of the Doc 9303 Part 10 data element catalogue is reachable through
// Get/Set by raw tag, per the data model's "specified only at the
// interface level" treatment of the plain data-group decoders.
const (
	TagNameOfHolder    uint16 = 0x5F0E
	TagFullDateOfBirth uint16 = 0x5F2B
)

var (
	tagDG11 = tlv.TagFromUint16(0x6B)
	tagDG12 = tlv.TagFromUint16(0x6C)
)

// AdditionalDetailField is one inner data object inside a DG11/DG12 file,
// in the order it was set.
type AdditionalDetailField struct {
	Tag   uint16
	Value string
}

// AdditionalDetailDataGroup is the generic DG11/DG12 shape: an ordered set
// of fields, preceded on the wire by a 5C tag-list header enumerating the
// tags present, in the order they were first set.
type AdditionalDetailDataGroup struct {
	outerTag tlv.Tag
	Fields   []AdditionalDetailField
}

func newAdditionalDetailDataGroup(outerTag tlv.Tag) *AdditionalDetailDataGroup {
	return &AdditionalDetailDataGroup{outerTag: outerTag}
}

// NewDG11 starts an empty additional-detail data group for outer tag 6B.
func NewDG11() *AdditionalDetailDataGroup { return newAdditionalDetailDataGroup(tagDG11) }

// NewDG12 starts an empty additional-detail data group for outer tag 6C.
func NewDG12() *AdditionalDetailDataGroup { return newAdditionalDetailDataGroup(tagDG12) }

// Set appends or replaces a field's value. The first time a tag is set
// fixes its position in the tag-list header.
func (g *AdditionalDetailDataGroup) Set(tag uint16, value string) {
	for i, f := range g.Fields {
		if f.Tag == tag {
			g.Fields[i].Value = value
			return
		}
	}
	g.Fields = append(g.Fields, AdditionalDetailField{Tag: tag, Value: value})
}

// Get returns a field's value and whether it was present.
func (g *AdditionalDetailDataGroup) Get(tag uint16) (string, bool) {
	for _, f := range g.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// NameOfHolder returns the 5F0E field, if present.
func (g *AdditionalDetailDataGroup) NameOfHolder() (string, bool) { return g.Get(TagNameOfHolder) }

// FullDateOfBirth returns the 5F2B field (yyyyMMdd), if present.
func (g *AdditionalDetailDataGroup) FullDateOfBirth() (string, bool) {
	return g.Get(TagFullDateOfBirth)
}

// Encode serialises the group: a 5C tag list of the fields' tags in
// insertion order, followed by the fields themselves in that order. A group
// with no fields set still emits a singleton field with an empty value
// rather than an empty tag list, per the round-trip contract: an empty
// list of strings is represented on the wire as a singleton list containing
// one empty string, not as a zero-length list.
func (g *AdditionalDetailDataGroup) Encode() []byte {
	fields := g.Fields
	if len(fields) == 0 {
		fields = []AdditionalDetailField{{Tag: TagNameOfHolder, Value: ""}}
	}

	tags := make([]uint16, len(fields))
	for i, f := range fields {
		tags[i] = f.Tag
	}

	w := tlv.NewWriter()
	w.BeginConstructed(g.outerTag)
	w.EmitPrimitive(tagListTag, encodeTagList(tags))
	for _, f := range fields {
		// Written byte for byte: tlv.Tag.Bytes would shorten two-byte tags
		// such as 5F0E, whose tag number is below 31, to one byte.
		tag := encodeTagList([]uint16{f.Tag})
		w.EmitRaw(append(append(tag, tlv.EncodeLength(len(f.Value))...), f.Value...))
	}
	w.ValueEnd()
	return w.Bytes()
}

// DecodeDG11 parses an additional-detail data group with outer tag 6B.
func DecodeDG11(data []byte) (*AdditionalDetailDataGroup, error) {
	return decodeAdditionalDetails(data, tagDG11)
}

// DecodeDG12 parses an additional-detail data group with outer tag 6C.
func DecodeDG12(data []byte) (*AdditionalDetailDataGroup, error) {
	return decodeAdditionalDetails(data, tagDG12)
}

func decodeAdditionalDetails(data []byte, outerTag tlv.Tag) (*AdditionalDetailDataGroup, error) {
	node, err := decodeOuter(data, outerTag)
	if err != nil {
		return nil, err
	}
	if len(node.Children) == 0 || node.Children[0].Tag != tagListTag {
		return nil, &MalformedError{Reason: "additional detail data group missing 5C tag list header"}
	}
	order, err := decodeTagList(node.Children[0].Value)
	if err != nil {
		return nil, err
	}
	rest := node.Children[1:]
	if len(order) != len(rest) {
		return nil, &MalformedError{Reason: "tag list length does not match field count"}
	}

	g := newAdditionalDetailDataGroup(outerTag)
	for i, tag := range order {
		if rest[i].Tag != tlv.TagFromUint16(tag) {
			return nil, &MalformedError{Reason: "field order does not match tag list"}
		}
		g.Fields = append(g.Fields, AdditionalDetailField{Tag: tag, Value: string(rest[i].Value)})
	}
	return g, nil
}
