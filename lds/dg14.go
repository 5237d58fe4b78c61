package lds

import (
	"emrtd/asn1x"
	"emrtd/tlv"
)

var tagDG14 = tlv.TagFromUint16(0x6E)

// Protocol OID prefixes used to dispatch a SecurityInfo's protocol OID to
// its concrete variant without needing a lookup table of every specific
// algorithm OID.
var (
	oidActiveAuthentication = asn1x.OID{2, 23, 136, 1, 1, 5}
	oidPACEPrefix           = asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 4}
	oidCAPrefix             = asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 3}
	oidTAPrefix             = asn1x.OID{0, 4, 0, 127, 0, 7, 2, 2, 2}
)

func hasOIDPrefix(oid, prefix asn1x.OID) bool {
	if len(oid) < len(prefix) {
		return false
	}
	return oid[:len(prefix)].Equal(prefix)
}

// SecurityInfo is one SET OF element inside DG14: a protocol OID plus its
// mode-specific fields. An unrecognised protocol OID decodes to
// GenericSecurityInfo rather than failing, so round-tripping a file this
// package doesn't specifically model still succeeds.
type SecurityInfo interface {
	OID() asn1x.OID
	encode() tlv.Node
}

// ActiveAuthenticationInfo advertises the signature algorithm the Active
// Authentication key (DG15) uses.
type ActiveAuthenticationInfo struct {
	Protocol           asn1x.OID
	Version            int64
	SignatureAlgorithm asn1x.OID
}

func (i ActiveAuthenticationInfo) OID() asn1x.OID { return i.Protocol }
func (i ActiveAuthenticationInfo) encode() tlv.Node {
	return asn1x.EncodeSequence(asn1x.EncodeOID(i.Protocol), asn1x.EncodeSignedInteger(i.Version), asn1x.EncodeOID(i.SignatureAlgorithm))
}

func decodeActiveAuthenticationInfo(oid asn1x.OID, seq tlv.Node) (SecurityInfo, error) {
	if len(seq.Children) < 3 {
		return nil, &MalformedError{Reason: "ActiveAuthenticationInfo needs protocol, version, signatureAlgorithm"}
	}
	version, err := asn1x.DecodeSignedInteger(seq.Children[1])
	if err != nil {
		return nil, err
	}
	sigAlg, err := asn1x.DecodeOID(seq.Children[2])
	if err != nil {
		return nil, err
	}
	return ActiveAuthenticationInfo{Protocol: oid, Version: version, SignatureAlgorithm: sigAlg}, nil
}

// TerminalAuthenticationInfo advertises the Terminal Authentication version
// the chip supports.
type TerminalAuthenticationInfo struct {
	Protocol asn1x.OID
	Version  int64
}

func (i TerminalAuthenticationInfo) OID() asn1x.OID { return i.Protocol }
func (i TerminalAuthenticationInfo) encode() tlv.Node {
	return asn1x.EncodeSequence(asn1x.EncodeOID(i.Protocol), asn1x.EncodeSignedInteger(i.Version))
}

func decodeTerminalAuthenticationInfo(oid asn1x.OID, seq tlv.Node) (SecurityInfo, error) {
	if len(seq.Children) < 2 {
		return nil, &MalformedError{Reason: "TerminalAuthenticationInfo needs protocol, version"}
	}
	version, err := asn1x.DecodeSignedInteger(seq.Children[1])
	if err != nil {
		return nil, err
	}
	return TerminalAuthenticationInfo{Protocol: oid, Version: version}, nil
}

// PACEInfo advertises one PACE cipher/mapping combination the chip
// supports, and optionally which standardised domain parameter it uses.
type PACEInfo struct {
	Protocol    asn1x.OID
	Version     int64
	ParameterID *int64
}

func (i PACEInfo) OID() asn1x.OID { return i.Protocol }
func (i PACEInfo) encode() tlv.Node {
	children := []tlv.Node{asn1x.EncodeOID(i.Protocol), asn1x.EncodeSignedInteger(i.Version)}
	if i.ParameterID != nil {
		children = append(children, asn1x.EncodeSignedInteger(*i.ParameterID))
	}
	return asn1x.EncodeSequence(children...)
}

// PACEDomainParameterInfo carries an explicit (non-standardised) domain
// parameter set as a raw AlgorithmIdentifier, for PACE protocols that
// reference it instead of a standardised parameterId.
type PACEDomainParameterInfo struct {
	Protocol        asn1x.OID
	DomainParameter []byte // raw AlgorithmIdentifier DER bytes
	ParameterID     *int64
}

func (i PACEDomainParameterInfo) OID() asn1x.OID { return i.Protocol }
func (i PACEDomainParameterInfo) encode() tlv.Node {
	domainNode, _, _ := tlv.Decode(i.DomainParameter)
	children := []tlv.Node{asn1x.EncodeOID(i.Protocol), domainNode}
	if i.ParameterID != nil {
		children = append(children, asn1x.EncodeSignedInteger(*i.ParameterID))
	}
	return asn1x.EncodeSequence(children...)
}

// decodePACESecurityInfo disambiguates PACEInfo from
// PACEDomainParameterInfo by the second field's tag: an INTEGER is a
// version number (PACEInfo), anything else is an AlgorithmIdentifier
// (PACEDomainParameterInfo).
func decodePACESecurityInfo(oid asn1x.OID, seq tlv.Node) (SecurityInfo, error) {
	if len(seq.Children) < 2 {
		return nil, &MalformedError{Reason: "PACE SecurityInfo needs protocol and a second field"}
	}
	if seq.Children[1].Tag.Number == asn1x.TagInteger {
		version, err := asn1x.DecodeSignedInteger(seq.Children[1])
		if err != nil {
			return nil, err
		}
		info := PACEInfo{Protocol: oid, Version: version}
		if len(seq.Children) >= 3 {
			pid, err := asn1x.DecodeSignedInteger(seq.Children[2])
			if err != nil {
				return nil, err
			}
			info.ParameterID = &pid
		}
		return info, nil
	}
	info := PACEDomainParameterInfo{Protocol: oid, DomainParameter: seq.Children[1].Encode()}
	if len(seq.Children) >= 3 {
		pid, err := asn1x.DecodeSignedInteger(seq.Children[2])
		if err != nil {
			return nil, err
		}
		info.ParameterID = &pid
	}
	return info, nil
}

// ChipAuthenticationInfo advertises one Chip Authentication cipher the chip
// supports, and optionally which of several static keys it refers to.
type ChipAuthenticationInfo struct {
	Protocol asn1x.OID
	Version  int64
	KeyID    *int64
}

func (i ChipAuthenticationInfo) OID() asn1x.OID { return i.Protocol }
func (i ChipAuthenticationInfo) encode() tlv.Node {
	children := []tlv.Node{asn1x.EncodeOID(i.Protocol), asn1x.EncodeSignedInteger(i.Version)}
	if i.KeyID != nil {
		children = append(children, asn1x.EncodeSignedInteger(*i.KeyID))
	}
	return asn1x.EncodeSequence(children...)
}

// ChipAuthenticationPublicKeyInfo carries the chip's static Chip
// Authentication public key, as a raw SubjectPublicKeyInfo.
type ChipAuthenticationPublicKeyInfo struct {
	Protocol  asn1x.OID
	PublicKey []byte // raw SubjectPublicKeyInfo DER bytes
	KeyID     *int64
}

func (i ChipAuthenticationPublicKeyInfo) OID() asn1x.OID { return i.Protocol }
func (i ChipAuthenticationPublicKeyInfo) encode() tlv.Node {
	pkNode, _, _ := tlv.Decode(i.PublicKey)
	children := []tlv.Node{asn1x.EncodeOID(i.Protocol), pkNode}
	if i.KeyID != nil {
		children = append(children, asn1x.EncodeSignedInteger(*i.KeyID))
	}
	return asn1x.EncodeSequence(children...)
}

// decodeCASecurityInfo disambiguates ChipAuthenticationInfo from
// ChipAuthenticationPublicKeyInfo the same way decodePACESecurityInfo does:
// by whether the second field is an INTEGER or a nested structure.
func decodeCASecurityInfo(oid asn1x.OID, seq tlv.Node) (SecurityInfo, error) {
	if len(seq.Children) < 2 {
		return nil, &MalformedError{Reason: "CA SecurityInfo needs protocol and a second field"}
	}
	if seq.Children[1].Tag.Number == asn1x.TagInteger {
		version, err := asn1x.DecodeSignedInteger(seq.Children[1])
		if err != nil {
			return nil, err
		}
		info := ChipAuthenticationInfo{Protocol: oid, Version: version}
		if len(seq.Children) >= 3 {
			kid, err := asn1x.DecodeSignedInteger(seq.Children[2])
			if err != nil {
				return nil, err
			}
			info.KeyID = &kid
		}
		return info, nil
	}
	info := ChipAuthenticationPublicKeyInfo{Protocol: oid, PublicKey: seq.Children[1].Encode()}
	if len(seq.Children) >= 3 {
		kid, err := asn1x.DecodeSignedInteger(seq.Children[2])
		if err != nil {
			return nil, err
		}
		info.KeyID = &kid
	}
	return info, nil
}

// GenericSecurityInfo preserves a SecurityInfo whose protocol OID this
// package doesn't recognise, so decoding a SecurityInfos SET never fails
// just because it contains an OID outside the PACE/CA/TA/AA families.
type GenericSecurityInfo struct {
	Protocol     asn1x.OID
	RequiredData []byte // raw DER of the second field, if any
	OptionalData []byte // raw DER of a third field, if present
}

func (i GenericSecurityInfo) OID() asn1x.OID { return i.Protocol }
func (i GenericSecurityInfo) encode() tlv.Node {
	children := []tlv.Node{asn1x.EncodeOID(i.Protocol)}
	if i.RequiredData != nil {
		n, _, _ := tlv.Decode(i.RequiredData)
		children = append(children, n)
	}
	if i.OptionalData != nil {
		n, _, _ := tlv.Decode(i.OptionalData)
		children = append(children, n)
	}
	return asn1x.EncodeSequence(children...)
}

func decodeGenericSecurityInfo(oid asn1x.OID, seq tlv.Node) SecurityInfo {
	g := GenericSecurityInfo{Protocol: oid}
	if len(seq.Children) >= 2 {
		g.RequiredData = seq.Children[1].Encode()
	}
	if len(seq.Children) >= 3 {
		g.OptionalData = seq.Children[2].Encode()
	}
	return g
}

func decodeSecurityInfo(seq tlv.Node) (SecurityInfo, error) {
	if len(seq.Children) < 1 {
		return nil, &MalformedError{Reason: "SecurityInfo missing protocol OID"}
	}
	oid, err := asn1x.DecodeOID(seq.Children[0])
	if err != nil {
		return nil, err
	}
	switch {
	case oid.Equal(oidActiveAuthentication):
		return decodeActiveAuthenticationInfo(oid, seq)
	case hasOIDPrefix(oid, oidTAPrefix):
		return decodeTerminalAuthenticationInfo(oid, seq)
	case hasOIDPrefix(oid, oidPACEPrefix):
		return decodePACESecurityInfo(oid, seq)
	case hasOIDPrefix(oid, oidCAPrefix):
		return decodeCASecurityInfo(oid, seq)
	default:
		return decodeGenericSecurityInfo(oid, seq), nil
	}
}

// DecodeDG14 parses a DG14 file: outer tag 6E wrapping a DER SET OF
// SecurityInfo.
func DecodeDG14(data []byte) ([]SecurityInfo, error) {
	node, err := decodeOuter(data, tagDG14)
	if err != nil {
		return nil, err
	}
	if len(node.Children) == 0 {
		return nil, &MalformedError{Reason: "DG14 missing SecurityInfos SET"}
	}
	set := node.Children[0]
	if set.Tag.Number != asn1x.TagSet {
		return nil, &MalformedError{Reason: "DG14 content is not a SET OF SecurityInfo"}
	}
	infos := make([]SecurityInfo, 0, len(set.Children))
	for _, seq := range set.Children {
		info, err := decodeSecurityInfo(seq)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// EncodeDG14 serialises a SecurityInfos SET back into a DG14 file.
func EncodeDG14(infos []SecurityInfo) []byte {
	nodes := make([]tlv.Node, len(infos))
	for i, info := range infos {
		nodes[i] = info.encode()
	}
	set := asn1x.EncodeSet(nodes...)

	w := tlv.NewWriter()
	w.BeginConstructed(tagDG14)
	w.EmitRaw(set.Encode())
	w.ValueEnd()
	return w.Bytes()
}
