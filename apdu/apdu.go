// Package apdu defines the ISO/IEC 7816-4 command/response types shared by
// the BAC/PACE/CA/TA/AA protocol state machines and the Secure Messaging
// wrapper, plus the Transport interface every chip-facing operation is
// driven through. Transport is an external collaborator: this package
// only describes its shape, never a concrete PC/SC or emulated
// implementation (see transport/pcsc for the real adapter).
package apdu

import (
	"context"
	"fmt"
)

// Standard ISO/IEC 7816-4 status words relevant to LDS access-control and
// file-read operations.
const (
	SWOK                     = 0x9000
	SWFileNotFound           = 0x6A82
	SWSecurityNotSatisfied   = 0x6982
	SWAuthFailed             = 0x6983
	SWReferenceDataNotFound  = 0x6A88
	SWConditionsNotSatisfied = 0x6985
	SWWrongP1P2              = 0x6A86
	SWInsNotSupported        = 0x6D00
	SWClaNotSupported        = 0x6E00
	SWWrongLength            = 0x6700
)

// Command is a single ISO/IEC 7816-4 command APDU, case 1-4 depending on
// which of Data/Le are populated.
type Command struct {
	CLA, INS, P1, P2 byte
	Data             []byte
	Le               *byte // nil means no Le byte; present (even 0x00) requests response data
}

// Bytes serialises the command to its wire form. Only short (non-extended)
// length encoding is produced; chip-facing LDS reads never need extended
// length because GetResponse/chained reads keep Lc/Le within one byte.
func (c Command) Bytes() []byte {
	out := []byte{c.CLA, c.INS, c.P1, c.P2}
	if len(c.Data) > 0 {
		out = append(out, byte(len(c.Data)))
		out = append(out, c.Data...)
	}
	if c.Le != nil {
		out = append(out, *c.Le)
	}
	return out
}

// Response is a parsed ISO/IEC 7816-4 response APDU.
type Response struct {
	Data []byte
	SW1  byte
	SW2  byte
}

// SW packs SW1/SW2 into a single status word.
func (r Response) SW() uint16 { return uint16(r.SW1)<<8 | uint16(r.SW2) }

// IsOK reports whether the status word is 9000.
func (r Response) IsOK() bool { return r.SW() == SWOK }

// HasMoreData reports SW1=0x61 (GET RESPONSE should be issued for SW2 bytes).
func (r Response) HasMoreData() bool { return r.SW1 == 0x61 }

// NeedsRetryWithLength reports SW1=0x6C (reissue with Le=SW2).
func (r Response) NeedsRetryWithLength() bool { return r.SW1 == 0x6C }

// Err returns a descriptive error for a non-successful, non-continuation
// status word, or nil if the response is a success or a continuation that
// the caller is expected to chase with GetResponse.
func (r Response) Err() error {
	if r.IsOK() || r.HasMoreData() || r.NeedsRetryWithLength() {
		return nil
	}
	return &StatusError{SW: r.SW()}
}

// StatusError reports a non-success status word returned by the chip.
type StatusError struct {
	SW uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apdu: status word %04X (%s)", e.SW, swDescription(e.SW))
}

func swDescription(sw uint16) string {
	switch sw {
	case SWFileNotFound:
		return "file not found"
	case SWSecurityNotSatisfied:
		return "security status not satisfied"
	case SWAuthFailed:
		return "authentication method blocked"
	case SWReferenceDataNotFound:
		return "reference data not found"
	case SWConditionsNotSatisfied:
		return "conditions of use not satisfied"
	case SWWrongP1P2:
		return "incorrect P1/P2"
	case SWInsNotSupported:
		return "instruction not supported"
	case SWClaNotSupported:
		return "class not supported"
	case SWWrongLength:
		return "wrong length"
	default:
		sw1 := byte(sw >> 8)
		if sw1 == 0x63 {
			return fmt.Sprintf("verification failed, %d attempts remaining", sw&0x0F)
		}
		return "unknown status"
	}
}

// Transport sends a single raw command APDU and returns the raw response
// bytes (including the trailing SW1 SW2), independent of the underlying
// link (PC/SC reader, NFC, an emulator). Every protocol/sm/lds operation
// that talks to a chip is expressed purely in terms of this interface, so
// the core library stays testable without real hardware.
type Transport interface {
	Transmit(ctx context.Context, command []byte) ([]byte, error)
}

// Send transmits cmd over t and parses the response.
func Send(ctx context.Context, t Transport, cmd Command) (Response, error) {
	raw, err := t.Transmit(ctx, cmd.Bytes())
	if err != nil {
		return Response{}, fmt.Errorf("apdu: transmit: %w", err)
	}
	if len(raw) < 2 {
		return Response{}, fmt.Errorf("apdu: response too short (%d bytes)", len(raw))
	}
	return Response{
		Data: raw[:len(raw)-2],
		SW1:  raw[len(raw)-2],
		SW2:  raw[len(raw)-1],
	}, nil
}

// GetResponse issues GET RESPONSE (INS=C0) for the given expected length,
// the standard way of retrieving data a card signalled with SW1=0x61.
func GetResponse(ctx context.Context, t Transport, le byte) (Response, error) {
	return Send(ctx, t, Command{CLA: 0x00, INS: 0xC0, Le: &le})
}

// SendChased sends cmd and, if the chip responds with SW1=0x61 (more data)
// or SW1=0x6C (retry with correct Le), chases the response to completion
// so that large DG2/DG3 reads never truncate silently.
func SendChased(ctx context.Context, t Transport, cmd Command) (Response, error) {
	resp, err := Send(ctx, t, cmd)
	if err != nil {
		return Response{}, err
	}
	if resp.NeedsRetryWithLength() {
		le := resp.SW2
		cmd.Le = &le
		return Send(ctx, t, cmd)
	}
	if resp.HasMoreData() {
		return GetResponse(ctx, t, resp.SW2)
	}
	return resp, nil
}

// ReadBinaryChained reads the full contents of the currently selected
// elementary file by repeated READ BINARY calls, handling both the
// SW1=0x6C short-read retry and short final chunks.
func ReadBinaryChained(ctx context.Context, t Transport, size int) ([]byte, error) {
	var out []byte
	offset := 0
	for offset < size {
		remaining := size - offset
		chunk := 0xFF
		if remaining < chunk {
			chunk = remaining
		}
		le := byte(chunk)
		cmd := Command{
			CLA: 0x00, INS: 0xB0,
			P1: byte(offset >> 8), P2: byte(offset & 0xFF),
			Le: &le,
		}
		resp, err := SendChased(ctx, t, cmd)
		if err != nil {
			return out, err
		}
		if err := resp.Err(); err != nil {
			return out, err
		}
		if len(resp.Data) == 0 {
			break
		}
		out = append(out, resp.Data...)
		offset += len(resp.Data)
	}
	return out, nil
}
