package iso19794

import "fmt"

var faceFormatID = [4]byte{'F', 'A', 'C', 0}
var faceVersion = [4]byte{'0', '1', '0', 0}

// FeaturePoint is one minutia-style landmark on a face image (ISO
// 19794-5 §5.6 feature points, simplified to the fields the LDS actually
// round-trips: a type code and a pixel coordinate).
type FeaturePoint struct {
	Type byte
	X, Y uint16
}

// FaceImage is one facial image record within a FacialRecord.
type FaceImage struct {
	Gender        byte
	EyeColour     byte
	HairColour    byte
	FeaturePoints []FeaturePoint
	ColourSpace   byte
	DataType      ImageDataType
	Width, Height uint16
	ImageData     []byte
}

// FacialRecord is the full DG2 Biometric Data Block payload: the 14-byte
// header plus one or more facial images.
type FacialRecord struct {
	Images []FaceImage
}

func (img FaceImage) encode() []byte {
	var out []byte
	out = append(out, img.Gender, img.EyeColour, img.HairColour)
	cnt := make([]byte, 2)
	putUint16(cnt, 0, uint16(len(img.FeaturePoints)))
	out = append(out, cnt...)
	for _, fp := range img.FeaturePoints {
		b := make([]byte, 5)
		b[0] = fp.Type
		putUint16(b, 1, fp.X)
		putUint16(b, 3, fp.Y)
		out = append(out, b...)
	}
	out = append(out, img.ColourSpace, byte(img.DataType))
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

func decodeFaceImage(b []byte) (FaceImage, int, error) {
	if len(b) < 8 {
		return FaceImage{}, 0, &MalformedRecordError{Reason: "face image header truncated"}
	}
	var img FaceImage
	img.Gender, img.EyeColour, img.HairColour = b[0], b[1], b[2]
	fpCount, err := readUint16(b, 3)
	if err != nil {
		return FaceImage{}, 0, err
	}
	off := 5
	for i := 0; i < int(fpCount); i++ {
		if off+5 > len(b) {
			return FaceImage{}, 0, &MalformedRecordError{Reason: "feature point list truncated"}
		}
		x, _ := readUint16(b, off+1)
		y, _ := readUint16(b, off+3)
		img.FeaturePoints = append(img.FeaturePoints, FeaturePoint{Type: b[off], X: x, Y: y})
		off += 5
	}
	if off+8 > len(b) {
		return FaceImage{}, 0, &MalformedRecordError{Reason: "face image trailer truncated"}
	}
	img.ColourSpace = b[off]
	img.DataType = ImageDataType(b[off+1])
	w, _ := readUint16(b, off+2)
	h, _ := readUint16(b, off+4)
	img.Width, img.Height = w, h
	imgLen, err := readUint32(b, off+6)
	if err != nil {
		return FaceImage{}, 0, err
	}
	off += 10
	if off+int(imgLen) > len(b) {
		return FaceImage{}, 0, &MalformedRecordError{Reason: "image data truncated"}
	}
	img.ImageData = append([]byte{}, b[off:off+int(imgLen)]...)
	off += int(imgLen)
	return img, off, nil
}

// Encode serialises the record to its byte-exact wire form.
func (r FacialRecord) Encode() []byte {
	var body []byte
	for _, img := range r.Images {
		body = append(body, img.encode()...)
	}
	header := make([]byte, 14)
	copy(header[0:4], faceFormatID[:])
	copy(header[4:8], faceVersion[:])
	putUint32(header, 8, uint32(14+len(body)))
	putUint16(header, 12, uint16(len(r.Images)))
	return append(header, body...)
}

// DecodeFacialRecord parses a DG2 BDB. If data begins with the bare JP2
// signature box instead of the "FAC\0" marker, the whole buffer is treated
// as a single JPEG2000 image blob and synthesised into a one-image record,
// a documented malformed-input fallback.
func DecodeFacialRecord(data []byte) (FacialRecord, error) {
	if len(data) >= 4 && string(data[:4]) == string(bareJP2Magic) {
		return FacialRecord{Images: []FaceImage{{
			DataType:  ImageDataTypeJPEG2000,
			ImageData: append([]byte{}, data...),
		}}}, nil
	}
	if len(data) < 14 {
		return FacialRecord{}, &MalformedRecordError{Reason: "record shorter than header"}
	}
	if string(data[0:4]) != "FAC\x00" {
		return FacialRecord{}, &MalformedRecordError{Reason: fmt.Sprintf("bad format identifier %q", data[0:4])}
	}
	count, err := readUint16(data, 12)
	if err != nil {
		return FacialRecord{}, err
	}
	off := 14
	var images []FaceImage
	for i := 0; i < int(count); i++ {
		img, n, err := decodeFaceImage(data[off:])
		if err != nil {
			return FacialRecord{}, err
		}
		images = append(images, img)
		off += n
	}
	return FacialRecord{Images: images}, nil
}
