// Package iso19794 implements the fixed, big-endian-packed ISO/IEC 19794
// biometric record layouts (face, iris, finger) carried inside DG2/DG3/DG4
// Biometric Data Blocks. Unlike tlv/asn1x, these are not tag-length-value
// formats: every field sits at a structurally fixed offset, packed and
// unpacked with plain big-endian byte slicing rather than parsing a
// self-describing container.
package iso19794

import (
	"encoding/binary"
	"fmt"
)

// MalformedRecordError reports a structural failure decoding a fixed-layout
// biometric record (wrong magic, truncated buffer, inconsistent counts).
type MalformedRecordError struct {
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("iso19794: malformed record: %s", e.Reason)
}

func readUint16(b []byte, off int) (uint16, error) {
	if off+2 > len(b) {
		return 0, &MalformedRecordError{Reason: "truncated uint16"}
	}
	return binary.BigEndian.Uint16(b[off:]), nil
}

func readUint32(b []byte, off int) (uint32, error) {
	if off+4 > len(b) {
		return 0, &MalformedRecordError{Reason: "truncated uint32"}
	}
	return binary.BigEndian.Uint32(b[off:]), nil
}

func putUint16(b []byte, off int, v uint16) { binary.BigEndian.PutUint16(b[off:], v) }
func putUint32(b []byte, off int, v uint32) { binary.BigEndian.PutUint32(b[off:], v) }

// ImageDataType identifies the compression format of the embedded image
// blob in a face/iris/finger record.
type ImageDataType byte

const (
	ImageDataTypeJPEG     ImageDataType = 0
	ImageDataTypeJPEG2000 ImageDataType = 1
)

// bareJP2Magic is the raw JP2 signature box length+type prefix
// (0x0000000C 'jP  ' box) some issuing systems emit directly in place of
// a proper FAC-format face record. This malformed input is tolerated and
// synthesised into a single-image fallback record rather than rejected.
var bareJP2Magic = []byte{0x00, 0x00, 0x00, 0x0C}
