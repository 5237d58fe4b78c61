// Package sm implements Secure Messaging wrapping/unwrapping (Doc 9303
// Part 11 §9.8) over the DO87/DO97/DO8E/DO99 data objects: a
// cipher-agnostic (3DES or AES), reusable session type driven by an
// explicit Send Sequence Counter.
package sm

import (
	"fmt"

	"emrtd/apdu"
	"emrtd/cryptoadapt"
	"emrtd/tlv"
)

// SessionTerminatedError is returned once a Secure Messaging session has
// detected tampering or a malformed response: a missing DO8E, a DO8E MAC
// mismatch, or a DO87 with no 01 indicator, unaligned ciphertext or
// invalid padding. Each of these ends the session, and every later Wrap or
// Unwrap returns this error. It is also returned for response data objects
// that fail to parse. The Send Sequence Counter is not itself checked.
type SessionTerminatedError struct {
	Reason string
}

func (e *SessionTerminatedError) Error() string { return fmt.Sprintf("sm: session terminated: %s", e.Reason) }

// Session holds the established Secure Messaging session keys and Send
// Sequence Counter for one chip session (post-BAC or post-PACE).
type Session struct {
	Cipher cryptoadapt.Cipher
	KEnc   []byte
	KMac   []byte
	ssc    []byte // same width as the cipher block size
	dead   bool
}

// NewSession starts a session with the given derived keys and initial SSC
// (for BAC: RND.IC[4:8]||RND.IFD[4:8]; for PACE: 0, since SSC starts at
// zero and is incremented before the first wrap).
func NewSession(cipher cryptoadapt.Cipher, kEnc, kMac, initialSSC []byte) *Session {
	ssc := make([]byte, cipher.BlockSize())
	copy(ssc[len(ssc)-len(initialSSC):], initialSSC)
	return &Session{Cipher: cipher, KEnc: kEnc, KMac: kMac, ssc: ssc}
}

func (s *Session) incrementSSC() {
	for i := len(s.ssc) - 1; i >= 0; i-- {
		s.ssc[i]++
		if s.ssc[i] != 0 {
			break
		}
	}
}

// SSC returns a copy of the current Send Sequence Counter, useful for
// diagnostics and for resuming a session across a process boundary.
func (s *Session) SSC() []byte { return append([]byte{}, s.ssc...) }

func (s *Session) encIV() ([]byte, error) {
	bs := s.Cipher.BlockSize()
	if s.Cipher == cryptoadapt.Cipher3DES {
		return make([]byte, bs), nil
	}
	// AES SM: IV = E(KEnc, SSC).
	return cryptoadapt.EncryptCBC(s.Cipher, s.KEnc, make([]byte, bs), s.ssc)
}

// Wrap protects cmd for transmission: encrypts the data field into DO87
// (if present), builds DO97 for Le (if requested), and authenticates the
// whole command with DO8E, per Doc 9303 Part 11 §9.8.3.1.
func (s *Session) Wrap(cmd apdu.Command) (apdu.Command, error) {
	if s.dead {
		return apdu.Command{}, &SessionTerminatedError{Reason: "wrap called after termination"}
	}
	s.incrementSSC()
	bs := s.Cipher.BlockSize()

	header := []byte{cmd.CLA | 0x0C, cmd.INS, cmd.P1, cmd.P2}
	paddedHeader := cryptoadapt.PadISO9797Method2(header, bs)

	var macInput []byte
	macInput = append(macInput, s.ssc...)
	macInput = append(macInput, paddedHeader...)

	var dataObjects []byte
	if len(cmd.Data) > 0 {
		iv, err := s.encIV()
		if err != nil {
			return apdu.Command{}, err
		}
		padded := cryptoadapt.PadISO9797Method2(cmd.Data, bs)
		ct, err := cryptoadapt.EncryptCBC(s.Cipher, s.KEnc, iv, padded)
		if err != nil {
			return apdu.Command{}, err
		}
		// DO87: 0x01 padding-indicator byte prefixed to the ciphertext.
		do87Value := append([]byte{0x01}, ct...)
		do87 := tlv.Node{Tag: tlv.TagFromUint16(0x87), Value: do87Value}
		enc := do87.Encode()
		dataObjects = append(dataObjects, enc...)
	}
	if cmd.Le != nil {
		do97 := tlv.Node{Tag: tlv.TagFromUint16(0x97), Value: []byte{*cmd.Le}}
		dataObjects = append(dataObjects, do97.Encode()...)
	}
	macInput = append(macInput, dataObjects...)
	macInput = cryptoadapt.PadISO9797Method2(macInput, bs)

	mac, err := s.computeMAC(macInput)
	if err != nil {
		return apdu.Command{}, err
	}
	do8E := tlv.Node{Tag: tlv.TagFromUint16(0x8E), Value: mac}

	body := append(append([]byte{}, dataObjects...), do8E.Encode()...)
	le := byte(0x00)
	return apdu.Command{
		CLA: cmd.CLA | 0x0C,
		INS: cmd.INS,
		P1:  cmd.P1,
		P2:  cmd.P2,
		Data: body,
		Le:  &le,
	}, nil
}

// Unwrap authenticates and decrypts a Secure Messaging-protected response,
// verifying DO8E before trusting DO87/DO99, and terminates the session on
// any MAC mismatch so a caller cannot accidentally keep using a tampered
// channel.
func (s *Session) Unwrap(resp apdu.Response) (apdu.Response, error) {
	if s.dead {
		return apdu.Response{}, &SessionTerminatedError{Reason: "unwrap called after termination"}
	}
	s.incrementSSC()
	bs := s.Cipher.BlockSize()

	r := tlv.NewReader(resp.Data)
	var do87, do99, do8E *tlv.Node
	for r.Len() > 0 {
		node, err := r.ReadNode()
		if err != nil {
			return apdu.Response{}, &SessionTerminatedError{Reason: "malformed response data objects"}
		}
		switch node.Tag.Uint16() {
		case 0x87:
			n := node
			do87 = &n
		case 0x99:
			n := node
			do99 = &n
		case 0x8E:
			n := node
			do8E = &n
		}
	}
	if do8E == nil {
		s.dead = true
		return apdu.Response{}, &SessionTerminatedError{Reason: "response missing DO8E"}
	}

	var macInput []byte
	macInput = append(macInput, s.ssc...)
	if do87 != nil {
		macInput = append(macInput, tlv.Node{Tag: tlv.TagFromUint16(0x87), Value: do87.Value}.Encode()...)
	}
	if do99 != nil {
		macInput = append(macInput, tlv.Node{Tag: tlv.TagFromUint16(0x99), Value: do99.Value}.Encode()...)
	}
	macInput = cryptoadapt.PadISO9797Method2(macInput, bs)

	expected, err := s.computeMAC(macInput)
	if err != nil {
		return apdu.Response{}, err
	}
	if !cryptoadapt.ConstantTimeCompare(expected, do8E.Value) {
		s.dead = true
		return apdu.Response{}, &SessionTerminatedError{Reason: "DO8E MAC mismatch"}
	}

	out := apdu.Response{}
	if do99 != nil && len(do99.Value) == 2 {
		out.SW1, out.SW2 = do99.Value[0], do99.Value[1]
	}
	if do87 != nil {
		if len(do87.Value) == 0 || do87.Value[0] != 0x01 {
			s.dead = true
			return apdu.Response{}, &SessionTerminatedError{Reason: "DO87 missing padding-content indicator 01"}
		}
		iv, err := s.encIV()
		if err != nil {
			return apdu.Response{}, err
		}
		pt, err := cryptoadapt.DecryptCBC(s.Cipher, s.KEnc, iv, do87.Value[1:])
		if err != nil {
			s.dead = true
			return apdu.Response{}, &SessionTerminatedError{Reason: "DO87 ciphertext not block aligned"}
		}
		unpadded, err := cryptoadapt.UnpadISO9797Method2(pt)
		if err != nil {
			s.dead = true
			return apdu.Response{}, &SessionTerminatedError{Reason: "DO87 padding invalid"}
		}
		out.Data = unpadded
	}
	return out, nil
}

func (s *Session) computeMAC(data []byte) ([]byte, error) {
	switch s.Cipher {
	case cryptoadapt.Cipher3DES:
		key24 := expandTo3DESKey(s.KMac)
		return cryptoadapt.RetailMAC(key24, data)
	case cryptoadapt.CipherAES:
		return cryptoadapt.AESCMAC(s.KMac, data)
	default:
		return nil, &UnsupportedCipherError{Cipher: s.Cipher}
	}
}

func expandTo3DESKey(k []byte) []byte {
	if len(k) == 16 {
		out := make([]byte, 24)
		copy(out[0:16], k)
		copy(out[16:24], k[0:8])
		return out
	}
	return k
}
