package lds

import (
	"fmt"
	"strings"

	"emrtd/tlv"
)

var tagDG1 = tlv.TagFromUint16(0x61)
var tagMRZData = tlv.TagFromUint16(0x5F1F)

// DocType identifies which fixed-width MRZ layout a string uses: TD1 is 3
// lines of 30, TD2 is 2 lines of 36, TD3 (the passport booklet format) is 2
// lines of 44.
type DocType int

const (
	DocTypeTD1 DocType = iota
	DocTypeTD2
	DocTypeTD3
)

// MRZInfo is the parsed content of DG1: the fixed-width ASCII fields of a
// machine-readable zone plus their check digits. Equal compares fields
// after trimming the '<' padding filler rather than the raw fixed-width
// strings, per the data model's equality contract.
type MRZInfo struct {
	DocType             DocType
	DocumentCode        string
	IssuingState        string
	PrimaryIdentifier   string
	SecondaryIdentifier string
	DocumentNumber      string
	DocumentNumberCheck byte
	Nationality         string
	DateOfBirth         string
	DateOfBirthCheck    byte
	Sex                 string
	DateOfExpiry        string
	DateOfExpiryCheck   byte
	OptionalData        string
	OptionalData2       string // TD1's second optional data field, on line 2
	CompositeCheck      byte

	raw string // original fixed-width string, preserved so re-encoding is byte-exact
}

// CheckDigitError reports that a field's stored check digit does not match
// the one recomputed from the field itself.
type CheckDigitError struct {
	Field     string
	Want, Got byte
}

func (e *CheckDigitError) Error() string {
	return fmt.Sprintf("lds: %s check digit mismatch: MRZ has %q, computed %q", e.Field, e.Want, e.Got)
}

func mrzCharValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0 // '<' and anything else the check algorithm treats as zero
	}
}

func mrzCheckDigit(s string) byte {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += mrzCharValue(s[i]) * weights[i%3]
	}
	return byte('0' + sum%10)
}

func splitName(field string) (string, string) {
	parts := strings.SplitN(field, "<<", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func joinName(primary, secondary string) string {
	if secondary == "" {
		return primary
	}
	return primary + "<<" + secondary
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat("<", n-len(s))
}

// ParseMRZ parses a fixed-width MRZ string into its TD1 (90 chars), TD2 (72
// chars) or TD3 (88 chars) fields, selected by length.
func ParseMRZ(raw string) (*MRZInfo, error) {
	switch len(raw) {
	case 90:
		return parseTD1(raw), nil
	case 72:
		return parseTD2(raw), nil
	case 88:
		return parseTD3(raw), nil
	default:
		return nil, &MalformedError{Reason: fmt.Sprintf("MRZ length %d matches no known document type", len(raw))}
	}
}

func parseTD3(raw string) *MRZInfo {
	line1, line2 := raw[:44], raw[44:88]
	primary, secondary := splitName(line1[5:44])
	return &MRZInfo{
		DocType:             DocTypeTD3,
		DocumentCode:        line1[0:2],
		IssuingState:        line1[2:5],
		PrimaryIdentifier:   primary,
		SecondaryIdentifier: secondary,
		DocumentNumber:      line2[0:9],
		DocumentNumberCheck: line2[9],
		Nationality:         line2[10:13],
		DateOfBirth:         line2[13:19],
		DateOfBirthCheck:    line2[19],
		Sex:                 line2[20:21],
		DateOfExpiry:        line2[21:27],
		DateOfExpiryCheck:   line2[27],
		OptionalData:        line2[28:42],
		CompositeCheck:      line2[43],
		raw:                 raw,
	}
}

func parseTD2(raw string) *MRZInfo {
	line1, line2 := raw[:36], raw[36:72]
	primary, secondary := splitName(line1[5:36])
	return &MRZInfo{
		DocType:             DocTypeTD2,
		DocumentCode:        line1[0:2],
		IssuingState:        line1[2:5],
		PrimaryIdentifier:   primary,
		SecondaryIdentifier: secondary,
		DocumentNumber:      line2[0:9],
		DocumentNumberCheck: line2[9],
		Nationality:         line2[10:13],
		DateOfBirth:         line2[13:19],
		DateOfBirthCheck:    line2[19],
		Sex:                 line2[20:21],
		DateOfExpiry:        line2[21:27],
		DateOfExpiryCheck:   line2[27],
		OptionalData:        line2[28:35],
		CompositeCheck:      line2[35],
		raw:                 raw,
	}
}

func parseTD1(raw string) *MRZInfo {
	line1, line2, line3 := raw[:30], raw[30:60], raw[60:90]
	primary, secondary := splitName(line3)
	return &MRZInfo{
		DocType:             DocTypeTD1,
		DocumentCode:        line1[0:2],
		IssuingState:        line1[2:5],
		DocumentNumber:      line1[5:14],
		DocumentNumberCheck: line1[14],
		OptionalData:        line1[15:30],
		DateOfBirth:         line2[0:6],
		DateOfBirthCheck:    line2[6],
		Sex:                 line2[7:8],
		DateOfExpiry:        line2[8:14],
		DateOfExpiryCheck:   line2[14],
		Nationality:         line2[15:18],
		OptionalData2:       line2[18:29],
		CompositeCheck:      line2[29],
		PrimaryIdentifier:   primary,
		SecondaryIdentifier: secondary,
		raw:                 raw,
	}
}

// Encoded returns the MRZ's fixed-width wire representation: the original
// string if this value came from ParseMRZ, or a freshly formatted string
// built from the struct's fields otherwise.
func (m MRZInfo) Encoded() string {
	if m.raw != "" {
		return m.raw
	}
	switch m.DocType {
	case DocTypeTD3:
		line1 := padRight(m.DocumentCode, 2) + padRight(m.IssuingState, 3) + padRight(joinName(m.PrimaryIdentifier, m.SecondaryIdentifier), 39)
		line2 := padRight(m.DocumentNumber, 9) + string(m.DocumentNumberCheck) + padRight(m.Nationality, 3) +
			padRight(m.DateOfBirth, 6) + string(m.DateOfBirthCheck) + padRight(m.Sex, 1) +
			padRight(m.DateOfExpiry, 6) + string(m.DateOfExpiryCheck) + padRight(m.OptionalData, 14) + string(m.CompositeCheck)
		return line1 + line2
	case DocTypeTD2:
		line1 := padRight(m.DocumentCode, 2) + padRight(m.IssuingState, 3) + padRight(joinName(m.PrimaryIdentifier, m.SecondaryIdentifier), 31)
		line2 := padRight(m.DocumentNumber, 9) + string(m.DocumentNumberCheck) + padRight(m.Nationality, 3) +
			padRight(m.DateOfBirth, 6) + string(m.DateOfBirthCheck) + padRight(m.Sex, 1) +
			padRight(m.DateOfExpiry, 6) + string(m.DateOfExpiryCheck) + padRight(m.OptionalData, 7) + string(m.CompositeCheck)
		return line1 + line2
	default: // DocTypeTD1
		line1 := padRight(m.DocumentCode, 2) + padRight(m.IssuingState, 3) + padRight(m.DocumentNumber, 9) +
			string(m.DocumentNumberCheck) + padRight(m.OptionalData, 15)
		line2 := padRight(m.DateOfBirth, 6) + string(m.DateOfBirthCheck) + padRight(m.Sex, 1) +
			padRight(m.DateOfExpiry, 6) + string(m.DateOfExpiryCheck) + padRight(m.Nationality, 3) +
			padRight(m.OptionalData2, 11) + string(m.CompositeCheck)
		line3 := padRight(joinName(m.PrimaryIdentifier, m.SecondaryIdentifier), 30)
		return line1 + line2 + line3
	}
}

func trimFiller(s string) string { return strings.Trim(s, "<") }

// Equal reports whether two MRZInfo values describe the same document,
// comparing each field after trimming '<' padding filler.
func (m MRZInfo) Equal(other MRZInfo) bool {
	return m.DocType == other.DocType &&
		trimFiller(m.DocumentCode) == trimFiller(other.DocumentCode) &&
		trimFiller(m.IssuingState) == trimFiller(other.IssuingState) &&
		trimFiller(m.PrimaryIdentifier) == trimFiller(other.PrimaryIdentifier) &&
		trimFiller(m.SecondaryIdentifier) == trimFiller(other.SecondaryIdentifier) &&
		trimFiller(m.DocumentNumber) == trimFiller(other.DocumentNumber) &&
		m.DocumentNumberCheck == other.DocumentNumberCheck &&
		trimFiller(m.Nationality) == trimFiller(other.Nationality) &&
		m.DateOfBirth == other.DateOfBirth &&
		m.DateOfBirthCheck == other.DateOfBirthCheck &&
		trimFiller(m.Sex) == trimFiller(other.Sex) &&
		m.DateOfExpiry == other.DateOfExpiry &&
		m.DateOfExpiryCheck == other.DateOfExpiryCheck &&
		trimFiller(m.OptionalData) == trimFiller(other.OptionalData) &&
		trimFiller(m.OptionalData2) == trimFiller(other.OptionalData2) &&
		m.CompositeCheck == other.CompositeCheck
}

// Validate recomputes the document number, date of birth and date of
// expiry check digits and reports the first mismatch found. The composite
// check digit is not verified.
func (m MRZInfo) Validate() error {
	if got := mrzCheckDigit(m.DocumentNumber); got != m.DocumentNumberCheck {
		return &CheckDigitError{Field: "documentNumber", Want: m.DocumentNumberCheck, Got: got}
	}
	if got := mrzCheckDigit(m.DateOfBirth); got != m.DateOfBirthCheck {
		return &CheckDigitError{Field: "dateOfBirth", Want: m.DateOfBirthCheck, Got: got}
	}
	if got := mrzCheckDigit(m.DateOfExpiry); got != m.DateOfExpiryCheck {
		return &CheckDigitError{Field: "dateOfExpiry", Want: m.DateOfExpiryCheck, Got: got}
	}
	return nil
}

// DG1 is the LDS file wrapping the MRZ, outer tag 61.
type DG1 struct {
	MRZ MRZInfo
}

// DecodeDG1 parses a DG1 file: outer tag 61 wrapping a single 5F1F data
// object holding the MRZ string.
func DecodeDG1(data []byte) (*DG1, error) {
	node, err := decodeOuter(data, tagDG1)
	if err != nil {
		return nil, err
	}
	inner, ok := node.Find(tagMRZData.Number)
	if !ok {
		return nil, &MalformedError{Reason: "DG1 missing MRZ data object (5F1F)"}
	}
	mrz, err := ParseMRZ(string(inner.Value))
	if err != nil {
		return nil, err
	}
	return &DG1{MRZ: *mrz}, nil
}

// Encode serialises the DG1 file back to its canonical BER TLV form.
func (d DG1) Encode() []byte {
	w := tlv.NewWriter()
	w.BeginConstructed(tagDG1)
	w.EmitPrimitive(tagMRZData, []byte(d.MRZ.Encoded()))
	w.ValueEnd()
	return w.Bytes()
}
