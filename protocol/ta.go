package protocol

import (
	"context"
	"crypto"

	"emrtd/apdu"
	"emrtd/asn1x"
	"emrtd/tlv"
)

// TAParams carries everything Terminal Authentication needs: the
// card-verifiable certificate chain to push onto the chip (root first,
// terminal certificate last), the terminal's own signing key and the
// binding material - the chip's ID and the hash of the ephemeral public
// key used in the preceding Chip Authentication run - the external
// authenticate signature covers.
type TAParams struct {
	OID              asn1x.OID
	CertificateChain [][]byte // each entry a complete CV certificate, root to leaf
	KeyReference     []byte   // selects the terminal certificate's public key; nil if the chip infers it from the last verified certificate
	Signer           crypto.Signer
	SignerOpts       crypto.SignerOpts
	IDPICC           []byte // the chip's identifier, from its unique identifier or DG
	PCDEphemeralHash []byte // H(PK_PCD) from the preceding CAResult.PCDKeyHash
}

// TAResult reports that Terminal Authentication completed; the protocol
// is stateless (it installs no new Secure Messaging keys), so there is
// nothing further to carry beyond success.
type TAResult struct{}

// RunTA pushes the certificate chain via PSO:Verify Certificate, then
// proves possession of the terminal's private key via
// EXTERNAL AUTHENTICATE over ID_PICC || RND.PICC || H(PK_PCD).
func RunTA(ctx context.Context, t apdu.Transport, p TAParams) (*TAResult, error) {
	for _, cert := range p.CertificateChain {
		if err := verifyCertificate(ctx, t, cert); err != nil {
			return nil, fail("TA", StageVerify, err)
		}
	}

	if err := mseSetDSTTA(ctx, t, p.OID, p.KeyReference); err != nil {
		return nil, fail("TA", StageMSESetAT, err)
	}

	rndPICC, err := getChallenge(ctx, t)
	if err != nil {
		return nil, fail("TA", StageGetChallenge, err)
	}

	signedData := append(append(append([]byte{}, p.IDPICC...), rndPICC...), p.PCDEphemeralHash...)
	sig, err := p.Signer.Sign(nil, signedData, p.SignerOpts)
	if err != nil {
		return nil, fail("TA", StageExternalAuthenticate, err)
	}

	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x82, P1: 0x00, P2: 0x00, Data: sig})
	if err != nil {
		return nil, fail("TA", StageExternalAuthenticate, err)
	}
	if err := resp.Err(); err != nil {
		return nil, fail("TA", StageExternalAuthenticate, err)
	}
	return &TAResult{}, nil
}

func verifyCertificate(ctx context.Context, t apdu.Transport, cert []byte) error {
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x2A, P1: 0x00, P2: 0xBE, Data: cert})
	if err != nil {
		return err
	}
	return resp.Err()
}

// mseSetDSTTA selects the TA protocol OID and, when given, a specific
// terminal key reference for the subsequent EXTERNAL AUTHENTICATE, per
// TR-03110's MSE:Set AT (P1=0x81, P2=0xA4) for Terminal Authentication.
func mseSetDSTTA(ctx context.Context, t apdu.Transport, oid asn1x.OID, keyRef []byte) error {
	fields := []tlv.Node{{Tag: tlv.TagFromUint16(0x80), Value: asn1x.EncodeOID(oid).Encode()}}
	if len(keyRef) > 0 {
		fields = append(fields, tlv.Node{Tag: tlv.TagFromUint16(0x83), Value: keyRef})
	}
	var buf []byte
	for _, f := range fields {
		buf = append(buf, f.Encode()...)
	}
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x22, P1: 0x81, P2: 0xA4, Data: buf})
	if err != nil {
		return err
	}
	return resp.Err()
}
