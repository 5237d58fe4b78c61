package protocol

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"emrtd/apdu"
	"emrtd/cryptoadapt"
)

// AAResult reports whether the chip proved possession of the private key
// matching the Active Authentication public key read from DG15.
type AAResult struct {
	Verified bool
}

// AAParams selects which of the chip's two possible AA key types to
// verify against: exactly one of RSAPublicKey or ECPublicKey must be set.
type AAParams struct {
	RSAPublicKey *rsa.PublicKey
	ECPublicKey  *ecdsa.PublicKey
	Digest       cryptoadapt.Digest
}

// RunAA drives Active Authentication: send an 8-byte challenge via
// INTERNAL AUTHENTICATE and verify the chip's signature over it, via
// ISO 9796-2 message recovery for an RSA AA key or plain ECDSA for an EC
// AA key.
func RunAA(ctx context.Context, t apdu.Transport, p AAParams) (*AAResult, error) {
	challenge := make([]byte, 8)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fail("AA", StageInternalAuthenticate, err)
	}

	le := byte(0x00)
	resp, err := apdu.Send(ctx, t, apdu.Command{CLA: 0x00, INS: 0x88, P1: 0x00, P2: 0x00, Data: challenge, Le: &le})
	if err != nil {
		return nil, fail("AA", StageInternalAuthenticate, err)
	}
	if err := resp.Err(); err != nil {
		return nil, fail("AA", StageInternalAuthenticate, err)
	}

	switch {
	case p.RSAPublicKey != nil:
		if err := cryptoadapt.VerifyRSAISO9796(p.RSAPublicKey, p.Digest, challenge, resp.Data); err != nil {
			return &AAResult{Verified: false}, nil
		}
		return &AAResult{Verified: true}, nil
	case p.ECPublicKey != nil:
		h, err := cryptoadapt.Sum(p.Digest, challenge)
		if err != nil {
			return nil, fail("AA", StageVerify, err)
		}
		if err := cryptoadapt.VerifyECDSA(p.ECPublicKey, h, resp.Data); err != nil {
			return &AAResult{Verified: false}, nil
		}
		return &AAResult{Verified: true}, nil
	default:
		return nil, fail("AA", StageVerify, fmt.Errorf("Active Authentication requires either an RSA or an EC public key"))
	}
}
