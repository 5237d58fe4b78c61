// Package protocol implements the access-control ceremonies a reader runs
// against an eMRTD chip: Basic Access Control, PACE (Generic/Integrated/
// Chip-Authentication Mapping), Chip Authentication, Terminal
// Authentication and Active Authentication. Each is a short state machine
// driven by an apdu.Transport, each following the same
// select-command/check-status-word/wrap-a-typed-error shape, generalized
// from single APDU exchanges to the multi-step ceremonies these protocols
// require.
package protocol

import "fmt"

// Stage identifies which step of a protocol ceremony failed, for callers
// that want to report exactly where things went wrong without parsing an
// error string.
type Stage string

const (
	StageSelect           Stage = "select"
	StageGetChallenge      Stage = "get-challenge"
	StageMutualAuthenticate Stage = "mutual-authenticate"
	StageGeneralAuthenticate Stage = "general-authenticate"
	StageMSESetAT          Stage = "mse-set-at"
	StageMSESetKAT         Stage = "mse-set-kat"
	StageExternalAuthenticate Stage = "external-authenticate"
	StageInternalAuthenticate Stage = "internal-authenticate"
	StageKeyAgreement      Stage = "key-agreement"
	StageVerify            Stage = "verify"
)

// ProtocolError reports a failure at a specific stage of a protocol
// ceremony, wrapping whatever lower-level APDU, crypto or decode error
// caused it.
type ProtocolError struct {
	Protocol string
	Stage    Stage
	Cause    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s failed at %s: %v", e.Protocol, e.Stage, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

func fail(protocol string, stage Stage, cause error) error {
	return &ProtocolError{Protocol: protocol, Stage: stage, Cause: cause}
}

// BACMutualAuthFailed reports that the chip's MUTUAL AUTHENTICATE response
// could not be decrypted/verified with the keys derived from the MRZ.
type BACMutualAuthFailed struct{ Cause error }

func (e *BACMutualAuthFailed) Error() string { return fmt.Sprintf("BAC mutual authentication failed: %v", e.Cause) }
func (e *BACMutualAuthFailed) Unwrap() error { return e.Cause }

// PACEMutualAuthFailed reports that the PICC's authentication token
// T_PICC did not match the token this side computed, meaning the two
// sides disagree on the shared secret (wrong MRZ/CAN/PIN, or an
// active attacker).
type PACEMutualAuthFailed struct{ Cause error }

func (e *PACEMutualAuthFailed) Error() string { return fmt.Sprintf("PACE mutual authentication failed: %v", e.Cause) }
func (e *PACEMutualAuthFailed) Unwrap() error { return e.Cause }
