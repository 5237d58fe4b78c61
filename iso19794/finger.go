package iso19794

var fingerFormatID = [4]byte{'F', 'I', 'R', 0}
var fingerVersion = [4]byte{'0', '1', '0', 0}

const fingerHeaderLength = 24

// FingerImage is one captured finger/palm image within a FingerRecord,
// structured analogously to FaceImage/IrisImage.
type FingerImage struct {
	FingerPosition byte
	ImpressionType byte
	Quality        byte
	DataType       ImageDataType
	Width, Height  uint16
	ImageData      []byte
}

// FingerRecord is the full DG3 Biometric Data Block payload.
type FingerRecord struct {
	CaptureDeviceID uint16
	Images          []FingerImage
}

func (img FingerImage) encode() []byte {
	out := []byte{img.FingerPosition, img.ImpressionType, img.Quality, byte(img.DataType)}
	dims := make([]byte, 4)
	putUint16(dims, 0, img.Width)
	putUint16(dims, 2, img.Height)
	out = append(out, dims...)
	lenField := make([]byte, 4)
	putUint32(lenField, 0, uint32(len(img.ImageData)))
	out = append(out, lenField...)
	out = append(out, img.ImageData...)
	return out
}

func decodeFingerImage(b []byte) (FingerImage, int, error) {
	if len(b) < 12 {
		return FingerImage{}, 0, &MalformedRecordError{Reason: "finger image header truncated"}
	}
	var img FingerImage
	img.FingerPosition, img.ImpressionType, img.Quality = b[0], b[1], b[2]
	img.DataType = ImageDataType(b[3])
	w, _ := readUint16(b, 4)
	h, _ := readUint16(b, 6)
	img.Width, img.Height = w, h
	n, err := readUint32(b, 8)
	if err != nil {
		return FingerImage{}, 0, err
	}
	off := 12
	if off+int(n) > len(b) {
		return FingerImage{}, 0, &MalformedRecordError{Reason: "finger image data truncated"}
	}
	img.ImageData = append([]byte{}, b[off:off+int(n)]...)
	return img, off + int(n), nil
}

// Encode serialises the record to its byte-exact wire form.
func (r FingerRecord) Encode() []byte {
	var body []byte
	for _, img := range r.Images {
		body = append(body, img.encode()...)
	}
	header := make([]byte, fingerHeaderLength)
	copy(header[0:4], fingerFormatID[:])
	copy(header[4:8], fingerVersion[:])
	putUint32(header, 8, uint32(fingerHeaderLength+len(body)))
	putUint16(header, 12, r.CaptureDeviceID)
	putUint16(header, 14, uint16(len(r.Images)))
	return append(header, body...)
}

// DecodeFingerRecord parses a DG3 BDB.
func DecodeFingerRecord(data []byte) (FingerRecord, error) {
	if len(data) < fingerHeaderLength {
		return FingerRecord{}, &MalformedRecordError{Reason: "record shorter than header"}
	}
	if string(data[0:4]) != "FIR\x00" {
		return FingerRecord{}, &MalformedRecordError{Reason: "bad format identifier"}
	}
	var r FingerRecord
	r.CaptureDeviceID, _ = readUint16(data, 12)
	count, err := readUint16(data, 14)
	if err != nil {
		return FingerRecord{}, err
	}
	off := fingerHeaderLength
	for i := 0; i < int(count); i++ {
		img, n, err := decodeFingerImage(data[off:])
		if err != nil {
			return FingerRecord{}, err
		}
		r.Images = append(r.Images, img)
		off += n
	}
	return r, nil
}
