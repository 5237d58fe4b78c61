package iso19794

var irisFormatID = [4]byte{'I', 'I', 'R', 0}
var irisVersion = [4]byte{'0', '1', '0', 0}

const irisHeaderLength = 45

// IrisImage is one image block within an iris biometric subtype.
type IrisImage struct {
	ImageData []byte
}

// IrisSubtype groups the image blocks captured for one eye/subtype code.
type IrisSubtype struct {
	SubtypeCode byte
	Images      []IrisImage
}

// IrisRecord is the full DG4 Biometric Data Block payload. Field widths
// below are chosen so the 45-byte header adds up exactly: capture device
// ID, image-properties bitfield, iris diameter,
// image format, intensity depth and transformation are each 2 bytes;
// raw width/height are 1 byte each; the device unique ID is 16 bytes.
type IrisRecord struct {
	CaptureDeviceID    uint16
	ImagePropsBitfield uint16
	IrisDiameter       uint16
	ImageFormat        uint16
	RawWidth           byte
	RawHeight          byte
	IntensityDepth     uint16
	Transformation     uint16
	DeviceUniqueID     [16]byte
	Subtypes           []IrisSubtype
}

// offsets within the 45-byte header
const (
	offCaptureDeviceID = 12
	offSubtypeCount    = 14
	offHeaderLength    = 15
	offImageProps      = 17
	offIrisDiameter    = 19
	offImageFormat     = 21
	offRawWidth        = 23
	offRawHeight       = 24
	offIntensityDepth  = 25
	offTransformation  = 27
	offDeviceUniqueID  = 29 // through 45
)

func (r IrisRecord) encodeBody() []byte {
	var body []byte
	for _, st := range r.Subtypes {
		body = append(body, st.SubtypeCode)
		cnt := make([]byte, 2)
		putUint16(cnt, 0, uint16(len(st.Images)))
		body = append(body, cnt...)
		for _, img := range st.Images {
			lenField := make([]byte, 4)
			putUint32(lenField, 0, uint32(len(img.ImageData)))
			body = append(body, lenField...)
			body = append(body, img.ImageData...)
		}
	}
	return body
}

// Encode serialises the record to its byte-exact wire form.
func (r IrisRecord) Encode() []byte {
	body := r.encodeBody()
	header := make([]byte, irisHeaderLength)
	copy(header[0:4], irisFormatID[:])
	copy(header[4:8], irisVersion[:])
	putUint32(header, 8, uint32(irisHeaderLength+len(body)))
	putUint16(header, offCaptureDeviceID, r.CaptureDeviceID)
	header[offSubtypeCount] = byte(len(r.Subtypes))
	putUint16(header, offHeaderLength, irisHeaderLength)
	putUint16(header, offImageProps, r.ImagePropsBitfield)
	putUint16(header, offIrisDiameter, r.IrisDiameter)
	putUint16(header, offImageFormat, r.ImageFormat)
	header[offRawWidth] = r.RawWidth
	header[offRawHeight] = r.RawHeight
	putUint16(header, offIntensityDepth, r.IntensityDepth)
	putUint16(header, offTransformation, r.Transformation)
	copy(header[offDeviceUniqueID:irisHeaderLength], r.DeviceUniqueID[:])
	return append(header, body...)
}

// DecodeIrisRecord parses a DG4 BDB.
func DecodeIrisRecord(data []byte) (IrisRecord, error) {
	if len(data) < irisHeaderLength {
		return IrisRecord{}, &MalformedRecordError{Reason: "record shorter than header"}
	}
	if string(data[0:4]) != "IIR\x00" {
		return IrisRecord{}, &MalformedRecordError{Reason: "bad format identifier"}
	}
	var r IrisRecord
	r.CaptureDeviceID, _ = readUint16(data, offCaptureDeviceID)
	subtypeCount := int(data[offSubtypeCount])
	r.ImagePropsBitfield, _ = readUint16(data, offImageProps)
	r.IrisDiameter, _ = readUint16(data, offIrisDiameter)
	r.ImageFormat, _ = readUint16(data, offImageFormat)
	r.RawWidth = data[offRawWidth]
	r.RawHeight = data[offRawHeight]
	r.IntensityDepth, _ = readUint16(data, offIntensityDepth)
	r.Transformation, _ = readUint16(data, offTransformation)
	copy(r.DeviceUniqueID[:], data[offDeviceUniqueID:irisHeaderLength])

	off := irisHeaderLength
	for i := 0; i < subtypeCount; i++ {
		if off+3 > len(data) {
			return IrisRecord{}, &MalformedRecordError{Reason: "subtype header truncated"}
		}
		st := IrisSubtype{SubtypeCode: data[off]}
		imgCount, _ := readUint16(data, off+1)
		off += 3
		for j := 0; j < int(imgCount); j++ {
			if off+4 > len(data) {
				return IrisRecord{}, &MalformedRecordError{Reason: "image length truncated"}
			}
			n, err := readUint32(data, off)
			if err != nil {
				return IrisRecord{}, err
			}
			off += 4
			if off+int(n) > len(data) {
				return IrisRecord{}, &MalformedRecordError{Reason: "image data truncated"}
			}
			st.Images = append(st.Images, IrisImage{ImageData: append([]byte{}, data[off:off+int(n)]...)})
			off += int(n)
		}
		r.Subtypes = append(r.Subtypes, st)
	}
	return r, nil
}
