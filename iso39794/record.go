package iso39794

import (
	"emrtd/asn1x"
	"emrtd/tlv"
)

// PoseAngle is one of the optional (yaw, pitch, roll) fields on a face
// representation. A missing Uncertainty is represented as -1 on decode
// and simply omitted on encode.
type PoseAngle struct {
	Value       int64
	Uncertainty int64 // -1 means "absent"
	HasAngle    bool
}

const noUncertainty = -1

func encodePoseAngle(tag uint32, p PoseAngle) (tlv.Node, bool) {
	if !p.HasAngle {
		return tlv.Node{}, false
	}
	children := []tlv.Node{asn1x.EncodeSignedInteger(p.Value)}
	if p.Uncertainty != noUncertainty {
		children = append(children, asn1x.EncodeSignedInteger(p.Uncertainty))
	}
	return tlv.Node{Tag: asn1x.ContextSpecific(tag, true), Children: children}, true
}

func decodePoseAngle(n tlv.Node) (PoseAngle, error) {
	p := PoseAngle{HasAngle: true, Uncertainty: noUncertainty}
	if len(n.Children) == 0 {
		return PoseAngle{}, &MalformedRecordError{Reason: "pose angle has no value"}
	}
	v, err := asn1x.DecodeSignedInteger(n.Children[0])
	if err != nil {
		return PoseAngle{}, err
	}
	p.Value = v
	if len(n.Children) > 1 {
		u, err := asn1x.DecodeSignedInteger(n.Children[1])
		if err != nil {
			return PoseAngle{}, err
		}
		p.Uncertainty = u
	}
	return p, nil
}

// Representation is one biometric representation block: a set of
// landmarks plus, for face records, optional pose angles. Finger/iris
// representations only populate Landmarks; Yaw/Pitch/Roll are zero-value
// (HasAngle=false) for those record kinds.
type Representation struct {
	Landmarks          []Landmark
	Yaw, Pitch, Roll   PoseAngle
}

func encodeRepresentation(r Representation) tlv.Node {
	var children []tlv.Node
	if len(r.Landmarks) > 0 {
		lms := make([]tlv.Node, len(r.Landmarks))
		for i, l := range r.Landmarks {
			lms[i] = encodeLandmark(l)
		}
		children = append(children, asn1x.EncodeSequence(lms...))
	}
	if n, ok := encodePoseAngle(0, r.Yaw); ok {
		children = append(children, n)
	}
	if n, ok := encodePoseAngle(1, r.Pitch); ok {
		children = append(children, n)
	}
	if n, ok := encodePoseAngle(2, r.Roll); ok {
		children = append(children, n)
	}
	return asn1x.EncodeSequence(children...)
}

func decodeRepresentation(n tlv.Node) (Representation, error) {
	var r Representation
	for _, c := range n.Children {
		switch {
		case c.Tag.Number == asn1x.TagSequence && c.Tag.Class == tlv.ClassUniversal:
			for _, lmNode := range c.Children {
				lm, err := decodeLandmark(lmNode)
				if err != nil {
					return Representation{}, err
				}
				r.Landmarks = append(r.Landmarks, lm)
			}
		case c.Tag.Class == tlv.ClassContextSpecific && c.Tag.Number == 0:
			p, err := decodePoseAngle(c)
			if err != nil {
				return Representation{}, err
			}
			r.Yaw = p
		case c.Tag.Class == tlv.ClassContextSpecific && c.Tag.Number == 1:
			p, err := decodePoseAngle(c)
			if err != nil {
				return Representation{}, err
			}
			r.Pitch = p
		case c.Tag.Class == tlv.ClassContextSpecific && c.Tag.Number == 2:
			p, err := decodePoseAngle(c)
			if err != nil {
				return Representation{}, err
			}
			r.Roll = p
		}
	}
	return r, nil
}

// Record is a decoded/to-be-encoded ISO 39794 biometric record: a version
// block plus one or more representation blocks.
type Record struct {
	Kind            RecordKind
	Version         int64
	Representations []Representation
}

// Encode serialises r to its [APPLICATION n] wire form. representationBlocks
// is always emitted as a SEQUENCE OF SEQUENCE (the "list" shape); the
// "single sequence" shape is only ever something this package tolerates
// on decode, which tolerates a flexible list-or-single encoding.
func (r Record) Encode() []byte {
	versionBlock := tlv.Node{
		Tag:      asn1x.ContextSpecific(0, true),
		Children: []tlv.Node{asn1x.EncodeSignedInteger(r.Version)},
	}
	reps := make([]tlv.Node, len(r.Representations))
	for i, rep := range r.Representations {
		reps[i] = encodeRepresentation(rep)
	}
	repsBlock := tlv.Node{
		Tag:      asn1x.ContextSpecific(1, true),
		Children: []tlv.Node{asn1x.EncodeSequence(reps...)},
	}
	outer := tlv.Node{
		Tag:      asn1x.Application(uint32(r.Kind), true),
		Children: []tlv.Node{versionBlock, repsBlock},
	}
	return outer.Encode()
}

// Decode parses data as a record of the given kind.
func Decode(kind RecordKind, data []byte) (Record, error) {
	node, rest, err := tlv.Decode(data)
	if err != nil {
		return Record{}, err
	}
	if len(rest) != 0 {
		return Record{}, &MalformedRecordError{Reason: "trailing bytes after record"}
	}
	if node.Tag.Class != tlv.ClassApplication || node.Tag.Number != uint32(kind) {
		return Record{}, &tlv.UnexpectedTagError{Expected: asn1x.Application(uint32(kind), true), Found: node.Tag}
	}

	versionBlock, ok := node.Find(0)
	if !ok || len(versionBlock.Children) == 0 {
		return Record{}, &MalformedRecordError{Reason: "missing versionBlock [0]"}
	}
	version, err := asn1x.DecodeSignedInteger(versionBlock.Children[0])
	if err != nil {
		return Record{}, err
	}

	repsBlock, ok := node.Find(1)
	if !ok || len(repsBlock.Children) == 0 {
		return Record{}, &MalformedRecordError{Reason: "missing representationBlocks [1]"}
	}
	repsContainer := repsBlock.Children[0]

	var repNodes []tlv.Node
	if looksLikeListOfSequences(repsContainer) {
		repNodes = repsContainer.Children
	} else {
		repNodes = []tlv.Node{repsContainer}
	}

	reps := make([]Representation, 0, len(repNodes))
	for _, rn := range repNodes {
		rep, err := decodeRepresentation(rn)
		if err != nil {
			return Record{}, err
		}
		reps = append(reps, rep)
	}
	return Record{Kind: kind, Version: version, Representations: reps}, nil
}

// looksLikeListOfSequences distinguishes the "list" shape (SEQUENCE OF
// representation SEQUENCEs) from the "single" shape (one representation
// directly). In the list shape every child is a SEQUENCE whose own children
// are context-specific pose angles or a landmark list, itself a SEQUENCE of
// SEQUENCEs. A single representation's landmark list fails that test,
// because its landmark SEQUENCEs hold INTEGERs.
func looksLikeListOfSequences(n tlv.Node) bool {
	isSeq := func(x tlv.Node) bool {
		return x.Tag.Class == tlv.ClassUniversal && x.Tag.Number == asn1x.TagSequence && x.Tag.Constructed
	}
	allSeq := func(xs []tlv.Node) bool {
		for _, x := range xs {
			if !isSeq(x) {
				return false
			}
		}
		return true
	}
	if len(n.Children) == 0 || !allSeq(n.Children) {
		return false
	}
	for _, c := range n.Children {
		for _, f := range c.Children {
			if f.Tag.Class != tlv.ClassContextSpecific && !(isSeq(f) && allSeq(f.Children)) {
				return false
			}
		}
	}
	return true
}
