// Package sod builds and verifies the Document Security Object: a CMS
// SignedData structure (RFC 5652, restricted to the subset Doc 9303 uses)
// wrapping an LDSSecurityObject - the version, digest algorithm and
// per-data-group hash list that passive authentication checks each LDS
// file against.
//
// The ASN.1 shapes below are grounded on the GOST CMS SignedData/SignerInfo
// layout in cb21ecda_LdDl-esia-potato's cms.go, generalized away from its
// GOST-specific signature/digest choices to the RSA/ECDSA primitives
// cryptoadapt already adapts, and built directly on asn1x/tlv rather than
// encoding/asn1's struct-tag mapper, for the same reason asn1x itself is:
// certificates and signed attributes need raw-bytes-preserving re-encoding
// for the digest-over-DER-bytes step to be exact.
package sod

import (
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"

	"emrtd/asn1x"
	"emrtd/cryptoadapt"
	"emrtd/tlv"
)

// Content-type OIDs for the LDSSecurityObject eContent. 2.23.136.1.1.1 is
// the current ICAO-registered OID; the other two are accepted on read for
// documents issued under older drafts of Doc 9303.
var (
	OIDLDSSecurityObject    = asn1x.OID{2, 23, 136, 1, 1, 1}
	oidLDSSecurityObjectAlt1 = asn1x.OID{1, 3, 27, 1, 1, 1}
	oidLDSSecurityObjectAlt2 = asn1x.OID{1, 2, 528, 1, 1006, 1, 20, 1}

	oidData       = asn1x.OID{1, 2, 840, 113549, 1, 7, 1}
	oidSignedData = asn1x.OID{1, 2, 840, 113549, 1, 7, 2}

	oidAttrContentType   = asn1x.OID{1, 2, 840, 113549, 1, 9, 3}
	oidAttrMessageDigest = asn1x.OID{1, 2, 840, 113549, 1, 9, 4}
)

func acceptedContentOIDs() []asn1x.OID {
	return []asn1x.OID{OIDLDSSecurityObject, oidLDSSecurityObjectAlt1, oidLDSSecurityObjectAlt2}
}

var digestOIDs = map[cryptoadapt.Digest]asn1x.OID{
	cryptoadapt.DigestSHA1:   {1, 3, 14, 3, 2, 26},
	cryptoadapt.DigestSHA224: {2, 16, 840, 1, 101, 3, 4, 2, 4},
	cryptoadapt.DigestSHA256: {2, 16, 840, 1, 101, 3, 4, 2, 1},
	cryptoadapt.DigestSHA384: {2, 16, 840, 1, 101, 3, 4, 2, 2},
	cryptoadapt.DigestSHA512: {2, 16, 840, 1, 101, 3, 4, 2, 3},
}

func digestOID(d cryptoadapt.Digest) (asn1x.OID, error) {
	oid, ok := digestOIDs[d]
	if !ok {
		return nil, &cryptoadapt.UnsupportedAlgorithmError{Algorithm: "digest"}
	}
	return oid, nil
}

func oidToDigest(o asn1x.OID) (cryptoadapt.Digest, error) {
	for d, oid := range digestOIDs {
		if oid.Equal(o) {
			return d, nil
		}
	}
	return 0, &cryptoadapt.UnsupportedAlgorithmError{Algorithm: fmt.Sprintf("digest OID %s", o)}
}

// SignatureAlgorithm identifies the public-key signature scheme a
// SignerInfo uses, independent of its digest (which travels separately).
type SignatureAlgorithm int

const (
	SigRSAPKCS1v15 SignatureAlgorithm = iota
	SigRSAPSS
	SigECDSA
	SigDSA
)

var rsaPKCS1OIDs = map[cryptoadapt.Digest]asn1x.OID{
	cryptoadapt.DigestSHA1:   {1, 2, 840, 113549, 1, 1, 5},
	cryptoadapt.DigestSHA256: {1, 2, 840, 113549, 1, 1, 11},
	cryptoadapt.DigestSHA384: {1, 2, 840, 113549, 1, 1, 12},
	cryptoadapt.DigestSHA512: {1, 2, 840, 113549, 1, 1, 13},
}

var ecdsaOIDs = map[cryptoadapt.Digest]asn1x.OID{
	cryptoadapt.DigestSHA1:   {1, 2, 840, 10045, 4, 1},
	cryptoadapt.DigestSHA256: {1, 2, 840, 10045, 4, 3, 2},
	cryptoadapt.DigestSHA384: {1, 2, 840, 10045, 4, 3, 3},
	cryptoadapt.DigestSHA512: {1, 2, 840, 10045, 4, 3, 4},
}

var oidRSASSAPSS = asn1x.OID{1, 2, 840, 113549, 1, 1, 10}

// dsaOIDs covers the classic DSA signature OIDs Doc 9303 still accepts
// for DSCs issued under older profiles; id-dsa-with-sha1 is the only one
// most issuers ever used, id-dsa-with-sha256 appears in later drafts.
var dsaOIDs = map[cryptoadapt.Digest]asn1x.OID{
	cryptoadapt.DigestSHA1:   {1, 2, 840, 10040, 4, 3},
	cryptoadapt.DigestSHA256: {2, 16, 840, 1, 101, 3, 4, 3, 2},
}

func signatureAlgOID(alg SignatureAlgorithm, d cryptoadapt.Digest) (asn1x.OID, error) {
	switch alg {
	case SigRSAPKCS1v15:
		oid, ok := rsaPKCS1OIDs[d]
		if !ok {
			return nil, &cryptoadapt.UnsupportedAlgorithmError{Algorithm: "RSA PKCS1v15 digest"}
		}
		return oid, nil
	case SigRSAPSS:
		return oidRSASSAPSS, nil
	case SigECDSA:
		oid, ok := ecdsaOIDs[d]
		if !ok {
			return nil, &cryptoadapt.UnsupportedAlgorithmError{Algorithm: "ECDSA digest"}
		}
		return oid, nil
	case SigDSA:
		oid, ok := dsaOIDs[d]
		if !ok {
			return nil, &cryptoadapt.UnsupportedAlgorithmError{Algorithm: "DSA digest"}
		}
		return oid, nil
	default:
		return nil, &cryptoadapt.UnsupportedAlgorithmError{Algorithm: "signature algorithm"}
	}
}

func signatureAlgFromOID(o asn1x.OID) (SignatureAlgorithm, cryptoadapt.Digest, error) {
	if o.Equal(oidRSASSAPSS) {
		return SigRSAPSS, cryptoadapt.DigestSHA256, nil
	}
	for d, oid := range rsaPKCS1OIDs {
		if oid.Equal(o) {
			return SigRSAPKCS1v15, d, nil
		}
	}
	for d, oid := range ecdsaOIDs {
		if oid.Equal(o) {
			return SigECDSA, d, nil
		}
	}
	for d, oid := range dsaOIDs {
		if oid.Equal(o) {
			return SigDSA, d, nil
		}
	}
	return 0, 0, &cryptoadapt.UnsupportedAlgorithmError{Algorithm: fmt.Sprintf("signature OID %s", o)}
}

// DataGroupHash is one (dataGroupNumber, hash) pair inside the
// LDSSecurityObject's dataGroupHashValues.
type DataGroupHash struct {
	Number int
	Hash   []byte
}

// SecurityObject is the decoded LDSSecurityObject payload, independent of
// its CMS envelope.
type SecurityObject struct {
	Version         int
	DigestAlgorithm cryptoadapt.Digest
	DataGroupHashes []DataGroupHash
}

func (s SecurityObject) encode() tlv.Node {
	algID := asn1x.EncodeSequence(asn1x.EncodeOID(mustDigestOID(s.DigestAlgorithm)), tlv.Node{Tag: asn1x.Universal(asn1x.TagNull, false)})
	hashes := make([]tlv.Node, len(s.DataGroupHashes))
	for i, h := range s.DataGroupHashes {
		hashes[i] = asn1x.EncodeSequence(
			asn1x.EncodeInteger(big.NewInt(int64(h.Number))),
			tlv.Node{Tag: asn1x.Universal(asn1x.TagOctetString, false), Value: h.Hash},
		)
	}
	return asn1x.EncodeSequence(
		asn1x.EncodeInteger(big.NewInt(int64(s.Version))),
		algID,
		asn1x.EncodeSequence(hashes...),
	)
}

func mustDigestOID(d cryptoadapt.Digest) asn1x.OID {
	oid, err := digestOID(d)
	if err != nil {
		panic(err) // only reachable by passing an unsupported Digest constant, a programmer error
	}
	return oid
}

func decodeSecurityObject(n tlv.Node) (SecurityObject, error) {
	if len(n.Children) < 3 {
		return SecurityObject{}, &MalformedError{Reason: "LDSSecurityObject needs version, digestAlgorithm, dataGroupHashes"}
	}
	version, err := asn1x.DecodeInteger(n.Children[0])
	if err != nil {
		return SecurityObject{}, err
	}
	if len(n.Children[1].Children) == 0 {
		return SecurityObject{}, &MalformedError{Reason: "digestAlgorithm missing OID"}
	}
	algOID, err := asn1x.DecodeOID(n.Children[1].Children[0])
	if err != nil {
		return SecurityObject{}, err
	}
	digest, err := oidToDigest(algOID)
	if err != nil {
		return SecurityObject{}, err
	}
	var hashes []DataGroupHash
	for _, h := range n.Children[2].Children {
		if len(h.Children) != 2 {
			return SecurityObject{}, &MalformedError{Reason: "dataGroupHash needs dataGroupNumber and digest"}
		}
		num, err := asn1x.DecodeInteger(h.Children[0])
		if err != nil {
			return SecurityObject{}, err
		}
		hashes = append(hashes, DataGroupHash{Number: int(num.Int64()), Hash: append([]byte{}, h.Children[1].Value...)})
	}
	return SecurityObject{Version: int(version.Int64()), DigestAlgorithm: digest, DataGroupHashes: hashes}, nil
}

// MalformedError reports a structural ASN.1 failure in a SOd or its
// embedded LDSSecurityObject.
type MalformedError struct{ Reason string }

func (e *MalformedError) Error() string { return fmt.Sprintf("sod: malformed: %s", e.Reason) }

// MismatchedDigestError reports that a data group's stored hash does not
// match the hash recomputed over its actual file content.
type MismatchedDigestError struct{ DataGroupNumber int }

func (e *MismatchedDigestError) Error() string {
	return fmt.Sprintf("sod: data group %d hash mismatch", e.DataGroupNumber)
}

// SignatureInvalidError reports that the CMS signature over the
// LDSSecurityObject content (or its signed attributes) failed to verify.
type SignatureInvalidError struct{ Err error }

func (e *SignatureInvalidError) Error() string { return fmt.Sprintf("sod: signature invalid: %v", e.Err) }
func (e *SignatureInvalidError) Unwrap() error { return e.Err }

// UntrustedSignerError reports that the SOd's embedded signer certificate
// (or the certificate the caller supplied out of band) is not the trust
// anchor Verify was told to check against.
type UntrustedSignerError struct{ Reason string }

func (e *UntrustedSignerError) Error() string { return fmt.Sprintf("sod: untrusted signer: %s", e.Reason) }

// Document is a decoded Document Security Object: the security object
// payload plus whatever CMS signer metadata was needed to verify it.
type Document struct {
	SecurityObject SecurityObject

	signedAttrs    []byte // raw bytes of the signedAttrs SET used for the signature, nil if absent
	eContent       []byte // raw LDSSecurityObject DER bytes
	signatureAlg   SignatureAlgorithm
	signatureDigest cryptoadapt.Digest
	signature      []byte
	certificate    *x509.Certificate // nil if the SOd carried no embedded certificate
}

// Build constructs a Document Security Object over the given hashes,
// signs its signedAttrs, and returns the full CMS ContentInfo DER encoding,
// with the LDSSecurityObject carried inside encapContentInfo, ready to
// write to the EF.SOD file.
func Build(digest cryptoadapt.Digest, hashes []DataGroupHash, signer crypto.Signer, sigAlg SignatureAlgorithm, cert *x509.Certificate) ([]byte, error) {
	if _, err := digestOID(digest); err != nil {
		return nil, err
	}
	so := SecurityObject{Version: 0, DigestAlgorithm: digest, DataGroupHashes: hashes}
	eContent := so.encode().Encode()

	contentDigest, err := cryptoadapt.Sum(digest, eContent)
	if err != nil {
		return nil, err
	}

	contentTypeAttr := encodeAttribute(oidAttrContentType, asn1x.EncodeOID(oidData))
	messageDigestAttr := encodeAttribute(oidAttrMessageDigest, tlv.Node{Tag: asn1x.Universal(asn1x.TagOctetString, false), Value: contentDigest})
	signedAttrsForSigning := asn1x.EncodeSet(contentTypeAttr, messageDigestAttr).Encode()

	sigDigestForSigning := signatureDigestFor(sigAlg, digest)
	attrsDigest, err := cryptoadapt.Sum(sigDigestForSigning, signedAttrsForSigning)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(rand.Reader, attrsDigest, signerOptsFor(sigAlg, sigDigestForSigning))
	if err != nil {
		return nil, fmt.Errorf("sod: sign: %w", err)
	}

	sigDigest := signatureDigestFor(sigAlg, digest)
	sigAlgOID, err := signatureAlgOID(sigAlg, sigDigest)
	if err != nil {
		return nil, err
	}
	digAlgOID, err := digestOID(digest)
	if err != nil {
		return nil, err
	}

	// signedAttrs is re-tagged [0] IMPLICIT for embedding (it is a SET for
	// the purposes of the signature computation, but IMPLICIT-tagged [0]
	// inside the SignerInfo), following the same SET->[0] relabeling
	// cb21ecda_LdDl-esia-potato's createSignedAttributes performs.
	signedAttrsNode := tlv.Node{Tag: asn1x.ContextSpecific(0, true), Children: []tlv.Node{contentTypeAttr, messageDigestAttr}}

	signerInfo := asn1x.EncodeSequence(
		asn1x.EncodeInteger(big.NewInt(1)),
		encodeIssuerAndSerial(cert),
		asn1x.EncodeSequence(asn1x.EncodeOID(digAlgOID), tlv.Node{Tag: asn1x.Universal(asn1x.TagNull, false)}),
		signedAttrsNode,
		asn1x.EncodeSequence(asn1x.EncodeOID(sigAlgOID), tlv.Node{Tag: asn1x.Universal(asn1x.TagNull, false)}),
		tlv.Node{Tag: asn1x.Universal(asn1x.TagOctetString, false), Value: sig},
	)

	signedData := asn1x.EncodeSequence(
		asn1x.EncodeInteger(big.NewInt(1)),
		asn1x.EncodeSet(asn1x.EncodeSequence(asn1x.EncodeOID(digAlgOID), tlv.Node{Tag: asn1x.Universal(asn1x.TagNull, false)})),
		asn1x.EncodeSequence(
			asn1x.EncodeOID(OIDLDSSecurityObject),
			tlv.Node{Tag: asn1x.ContextSpecific(0, true), Children: []tlv.Node{{Tag: asn1x.Universal(asn1x.TagOctetString, false), Value: eContent}}},
		),
		tlv.Node{Tag: asn1x.ContextSpecific(0, true), Children: []tlv.Node{rawCertificate(cert)}},
		asn1x.EncodeSet(signerInfo),
	)

	contentInfo := tlv.Node{
		Tag: asn1x.Universal(asn1x.TagSequence, true),
		Children: []tlv.Node{
			asn1x.EncodeOID(oidSignedData),
			{Tag: asn1x.ContextSpecific(0, true), Children: []tlv.Node{signedData}},
		},
	}
	return contentInfo.Encode(), nil
}

func signatureDigestFor(alg SignatureAlgorithm, dgDigest cryptoadapt.Digest) cryptoadapt.Digest {
	if alg == SigRSAPSS {
		return cryptoadapt.DigestSHA256
	}
	return dgDigest
}

func cryptoHashFor(d cryptoadapt.Digest) crypto.Hash {
	switch d {
	case cryptoadapt.DigestSHA1:
		return crypto.SHA1
	case cryptoadapt.DigestSHA224:
		return crypto.SHA224
	case cryptoadapt.DigestSHA384:
		return crypto.SHA384
	case cryptoadapt.DigestSHA512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

// signerOptsFor builds the crypto.SignerOpts a crypto.Signer.Sign call
// needs: a bare crypto.Hash for PKCS1v15/ECDSA, or rsa.PSSOptions for PSS.
func signerOptsFor(alg SignatureAlgorithm, d cryptoadapt.Digest) crypto.SignerOpts {
	h := cryptoHashFor(d)
	if alg == SigRSAPSS {
		return &rsa.PSSOptions{Hash: h, SaltLength: rsa.PSSSaltLengthEqualsHash}
	}
	return h
}

func encodeAttribute(oid asn1x.OID, value tlv.Node) tlv.Node {
	return asn1x.EncodeSequence(asn1x.EncodeOID(oid), asn1x.EncodeSet(value))
}

func encodeIssuerAndSerial(cert *x509.Certificate) tlv.Node {
	issuer, _, _ := tlv.Decode(cert.RawIssuer)
	return asn1x.EncodeSequence(issuer, asn1x.EncodeInteger(cert.SerialNumber))
}

func rawCertificate(cert *x509.Certificate) tlv.Node {
	n, _, _ := tlv.Decode(cert.Raw)
	return n
}

// Parse decodes a ContentInfo/SignedData-wrapped Document Security Object
// without verifying its signature (see Verify).
func Parse(data []byte) (*Document, error) {
	node, rest, err := tlv.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, &MalformedError{Reason: "trailing bytes after ContentInfo"}
	}
	if len(node.Children) != 2 {
		return nil, &MalformedError{Reason: "ContentInfo needs contentType and content"}
	}
	ctOID, err := asn1x.DecodeOID(node.Children[0])
	if err != nil {
		return nil, err
	}
	if !ctOID.Equal(oidSignedData) {
		return nil, &MalformedError{Reason: fmt.Sprintf("unexpected ContentInfo type %s, want SignedData", ctOID)}
	}
	if len(node.Children[1].Children) == 0 {
		return nil, &MalformedError{Reason: "content [0] is empty"}
	}
	signedData := node.Children[1].Children[0]
	if len(signedData.Children) < 4 {
		return nil, &MalformedError{Reason: "SignedData needs version, digestAlgorithms, encapContentInfo, signerInfos"}
	}

	encapContentInfo := signedData.Children[2]
	if len(encapContentInfo.Children) < 2 {
		return nil, &MalformedError{Reason: "encapContentInfo missing eContentType/eContent"}
	}
	contentOID, err := asn1x.DecodeOID(encapContentInfo.Children[0])
	if err != nil {
		return nil, err
	}
	if !oidIsOneOf(contentOID, acceptedContentOIDs()) {
		return nil, &MalformedError{Reason: fmt.Sprintf("unrecognised eContentType %s", contentOID)}
	}
	eContentWrapper := encapContentInfo.Children[1]
	if len(eContentWrapper.Children) == 0 {
		return nil, &MalformedError{Reason: "eContent [0] is empty"}
	}
	eContent := eContentWrapper.Children[0].Value

	soNode, _, err := tlv.Decode(eContent)
	if err != nil {
		return nil, err
	}
	so, err := decodeSecurityObject(soNode)
	if err != nil {
		return nil, err
	}

	var cert *x509.Certificate
	for _, c := range signedData.Children {
		if c.Tag.Class == tlv.ClassContextSpecific && c.Tag.Number == 0 && c.Tag.Constructed {
			if len(c.Children) > 0 {
				raw := c.Children[0].Encode()
				parsed, err := x509.ParseCertificate(raw)
				if err == nil {
					cert = parsed
				}
			}
		}
	}

	var signerInfoSet tlv.Node
	for _, c := range signedData.Children {
		if c.Tag.Class == tlv.ClassUniversal && c.Tag.Number == asn1x.TagSet {
			signerInfoSet = c // last SET child is signerInfos (digestAlgorithms is the first)
		}
	}
	if len(signerInfoSet.Children) == 0 {
		return nil, &MalformedError{Reason: "SignedData has no signerInfos"}
	}
	signerInfo := signerInfoSet.Children[0]
	if len(signerInfo.Children) < 5 {
		return nil, &MalformedError{Reason: "SignerInfo missing required fields"}
	}

	var signedAttrsRaw []byte
	idx := 3 // after version, sid, digestAlgorithm
	if signerInfo.Children[idx].Tag.Class == tlv.ClassContextSpecific && signerInfo.Children[idx].Tag.Number == 0 {
		set := tlv.Node{Tag: asn1x.Universal(asn1x.TagSet, true), Children: signerInfo.Children[idx].Children}
		signedAttrsRaw = set.Encode()
		idx++
	}
	if len(signerInfo.Children) < idx+2 {
		return nil, &MalformedError{Reason: "SignerInfo missing signatureAlgorithm/signature"}
	}
	sigAlgField := signerInfo.Children[idx]
	sigField := signerInfo.Children[idx+1]

	sigAlgOID, err := asn1x.DecodeOID(sigAlgField.Children[0])
	if err != nil {
		return nil, err
	}
	sigAlg, sigDigest, err := signatureAlgFromOID(sigAlgOID)
	if err != nil {
		return nil, err
	}

	return &Document{
		SecurityObject:  so,
		signedAttrs:     signedAttrsRaw,
		eContent:        eContent,
		signatureAlg:    sigAlg,
		signatureDigest: sigDigest,
		signature:       append([]byte{}, sigField.Value...),
		certificate:     cert,
	}, nil
}

func oidIsOneOf(o asn1x.OID, set []asn1x.OID) bool {
	for _, c := range set {
		if o.Equal(c) {
			return true
		}
	}
	return false
}

// Verify checks the CMS signature over the LDSSecurityObject against
// trustedSigner's public key, and - if the SOd carried an embedded
// certificate - that it matches trustedSigner. It does not itself walk a
// certificate chain to a CSCA root; the caller is expected to have
// validated trustedSigner through whatever PKI trust store it maintains.
func (d *Document) Verify(trustedSigner *x509.Certificate) error {
	if d.certificate != nil && !d.certificate.Equal(trustedSigner) {
		return &UntrustedSignerError{Reason: "embedded signer certificate does not match the supplied trust anchor"}
	}

	signedBytes := d.eContent
	if d.signedAttrs != nil {
		contentDigest, err := cryptoadapt.Sum(d.SecurityObject.DigestAlgorithm, d.eContent)
		if err != nil {
			return err
		}
		if err := verifyMessageDigestAttr(d.signedAttrs, contentDigest); err != nil {
			return err
		}
		signedBytes = d.signedAttrs
	}

	digest, err := cryptoadapt.Sum(d.signatureDigest, signedBytes)
	if err != nil {
		return err
	}

	switch pub := trustedSigner.PublicKey.(type) {
	case *rsa.PublicKey:
		var verr error
		if d.signatureAlg == SigRSAPSS {
			verr = cryptoadapt.VerifyRSAPSS(pub, d.signatureDigest, digest, d.signature)
		} else {
			verr = cryptoadapt.VerifyRSAPKCS1v15(pub, d.signatureDigest, digest, d.signature)
		}
		if verr != nil {
			return &SignatureInvalidError{Err: verr}
		}
	case *ecdsa.PublicKey:
		if err := cryptoadapt.VerifyECDSA(pub, digest, d.signature); err != nil {
			return &SignatureInvalidError{Err: err}
		}
	case *dsa.PublicKey:
		if err := cryptoadapt.VerifyDSA(pub, digest, d.signature); err != nil {
			return &SignatureInvalidError{Err: err}
		}
	default:
		return &cryptoadapt.UnsupportedAlgorithmError{Algorithm: "signer public key type"}
	}
	return nil
}

func verifyMessageDigestAttr(signedAttrsDER []byte, wantDigest []byte) error {
	node, _, err := tlv.Decode(signedAttrsDER)
	if err != nil {
		return err
	}
	for _, attr := range node.Children {
		if len(attr.Children) != 2 {
			continue
		}
		oid, err := asn1x.DecodeOID(attr.Children[0])
		if err != nil {
			continue
		}
		if !oid.Equal(oidAttrMessageDigest) {
			continue
		}
		if len(attr.Children[1].Children) == 0 {
			return &MalformedError{Reason: "messageDigest attribute has no value"}
		}
		got := attr.Children[1].Children[0].Value
		if !cryptoadapt.ConstantTimeCompare(got, wantDigest) {
			return &SignatureInvalidError{Err: fmt.Errorf("signedAttrs messageDigest does not match recomputed content digest")}
		}
		return nil
	}
	return &MalformedError{Reason: "signedAttrs missing messageDigest attribute"}
}

// VerifyDataGroups checks each DataGroupHash in d.SecurityObject against
// actual[dataGroupNumber], the raw content of that LDS data group file,
// returning the first MismatchedDigestError encountered.
func (d *Document) VerifyDataGroups(actual map[int][]byte) error {
	for _, h := range d.SecurityObject.DataGroupHashes {
		content, ok := actual[h.Number]
		if !ok {
			continue
		}
		sum, err := cryptoadapt.Sum(d.SecurityObject.DigestAlgorithm, content)
		if err != nil {
			return err
		}
		if !cryptoadapt.ConstantTimeCompare(sum, h.Hash) {
			return &MismatchedDigestError{DataGroupNumber: h.Number}
		}
	}
	return nil
}
