package cmd

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"emrtd/apdu"
	"emrtd/output"
	"emrtd/sm"
)

// printError prints an error message using the output package.
func printError(msg string) {
	output.PrintError(msg)
}

// printSuccess prints a success message, suppressed under --json.
func printSuccess(msg string) {
	if !outputJSON {
		output.PrintSuccess(msg)
	}
}

// printWarning prints a warning message, suppressed under --json.
func printWarning(msg string) {
	if !outputJSON {
		output.PrintWarning(msg)
	}
}

// smTransport wraps an apdu.Transport with a Secure Messaging session so
// every command sent through it is transparently protected once a
// session is established.
type smTransport struct {
	inner   apdu.Transport
	session *sm.Session
}

func (s *smTransport) Transmit(ctx context.Context, raw []byte) ([]byte, error) {
	cmd := apdu.Command{CLA: raw[0], INS: raw[1], P1: raw[2], P2: raw[3]}
	body := raw[4:]
	switch {
	case len(body) == 0:
		// No data, no Le.
	case len(body) == 1:
		le := body[0]
		cmd.Le = &le
	default:
		n := int(body[0])
		cmd.Data = body[1 : 1+n]
		if len(body) == 2+n {
			le := body[1+n]
			cmd.Le = &le
		}
	}

	wrapped, err := s.session.Wrap(cmd)
	if err != nil {
		return nil, fmt.Errorf("secure messaging wrap: %w", err)
	}
	rawResp, err := s.inner.Transmit(ctx, wrapped.Bytes())
	if err != nil {
		return nil, err
	}
	if len(rawResp) < 2 {
		return nil, fmt.Errorf("apdu: response too short (%d bytes)", len(rawResp))
	}
	resp := apdu.Response{Data: rawResp[:len(rawResp)-2], SW1: rawResp[len(rawResp)-2], SW2: rawResp[len(rawResp)-1]}
	unwrapped, err := s.session.Unwrap(resp)
	if err != nil {
		return nil, fmt.Errorf("secure messaging unwrap: %w", err)
	}
	out := append([]byte{}, unwrapped.Data...)
	out = append(out, unwrapped.SW1, unwrapped.SW2)
	return out, nil
}

// readEF selects the elementary file identified by fid and reads its full
// contents: a short peek reveals the outer TLV's declared length, then the
// whole file is read from offset 0 via apdu.ReadBinaryChained. LDS files are always a single
// top-level TLV, so the peeked prefix plus the declared content length is
// exactly the file size.
func readEF(ctx context.Context, t apdu.Transport, fid uint16) ([]byte, error) {
	selResp, err := apdu.Send(ctx, t, apdu.Command{
		CLA: 0x00, INS: 0xA4, P1: 0x02, P2: 0x0C,
		Data: []byte{byte(fid >> 8), byte(fid & 0xFF)},
	})
	if err != nil {
		return nil, err
	}
	if err := selResp.Err(); err != nil {
		return nil, fmt.Errorf("select EF %04X: %w", fid, err)
	}

	le := byte(8)
	peek, err := apdu.SendChased(ctx, t, apdu.Command{CLA: 0x00, INS: 0xB0, P1: 0x00, P2: 0x00, Le: &le})
	if err != nil {
		return nil, err
	}
	if err := peek.Err(); err != nil {
		return nil, fmt.Errorf("read EF %04X: %w", fid, err)
	}

	total, err := tlvTotalLength(peek.Data)
	if err != nil {
		return nil, fmt.Errorf("read EF %04X: %w", fid, err)
	}
	if total <= len(peek.Data) {
		return peek.Data[:total], nil
	}

	full, err := apdu.ReadBinaryChained(ctx, t, total)
	if err != nil {
		return nil, err
	}
	return full, nil
}

// tlvTotalLength returns the full byte length of the single BER/DER TLV
// that prefix begins (tag + length + value), given only its first few
// bytes. It implements just enough of the length-octet rules to size a
// read, without requiring the value bytes to be present yet.
func tlvTotalLength(prefix []byte) (total int, err error) {
	i := 0
	if i >= len(prefix) {
		return 0, fmt.Errorf("empty prefix")
	}
	first := prefix[i]
	i++
	if first&0x1F == 0x1F {
		for i < len(prefix) && prefix[i]&0x80 != 0 {
			i++
		}
		if i >= len(prefix) {
			return 0, fmt.Errorf("truncated tag")
		}
		i++
	}
	if i >= len(prefix) {
		return 0, fmt.Errorf("truncated length")
	}
	lb := prefix[i]
	i++
	var length int
	if lb&0x80 == 0 {
		length = int(lb)
	} else {
		n := int(lb & 0x7F)
		if i+n > len(prefix) {
			return 0, fmt.Errorf("need more bytes to read length")
		}
		for j := 0; j < n; j++ {
			length = length<<8 | int(prefix[i])
			i++
		}
	}
	return i + length, nil
}

// promptSecret reads a line from the terminal with echo disabled, for a
// PACE CAN or MRZ secret that should not appear in shell history or on
// screen.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(data), nil
}
