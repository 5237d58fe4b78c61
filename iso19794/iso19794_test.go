package iso19794

import (
	"bytes"
	"testing"
)

func TestFacialRecordRoundTrip(t *testing.T) {
	rec := FacialRecord{Images: []FaceImage{{
		Gender:     1,
		EyeColour:  2,
		HairColour: 3,
		FeaturePoints: []FeaturePoint{
			{Type: 1, X: 10, Y: 20},
			{Type: 2, X: 30, Y: 40},
		},
		ColourSpace: 1,
		DataType:    ImageDataTypeJPEG,
		Width:       640,
		Height:      480,
		ImageData:   []byte{0xFF, 0xD8, 0xFF, 0xE0},
	}}}

	encoded := rec.Encode()
	decoded, err := DecodeFacialRecord(encoded)
	if err != nil {
		t.Fatalf("DecodeFacialRecord: %v", err)
	}
	reencoded := decoded.Encode()
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("round trip mismatch:\n got  %X\n want %X", reencoded, encoded)
	}
	if len(decoded.Images) != 1 || len(decoded.Images[0].FeaturePoints) != 2 {
		t.Fatalf("decoded structure mismatch: %+v", decoded)
	}
}

func TestFacialRecordBareJP2Fallback(t *testing.T) {
	bare := append(append([]byte{}, bareJP2Magic...), []byte("jP  rest-of-jp2-stream")...)
	rec, err := DecodeFacialRecord(bare)
	if err != nil {
		t.Fatalf("DecodeFacialRecord: %v", err)
	}
	if len(rec.Images) != 1 {
		t.Fatalf("expected single-image fallback record, got %d images", len(rec.Images))
	}
	if rec.Images[0].DataType != ImageDataTypeJPEG2000 {
		t.Errorf("DataType = %v, want JPEG2000", rec.Images[0].DataType)
	}
	if !bytes.Equal(rec.Images[0].ImageData, bare) {
		t.Errorf("synthesised image data does not retain the original bytes")
	}
}

func TestIrisRecordRoundTrip(t *testing.T) {
	rec := IrisRecord{
		CaptureDeviceID:    7,
		ImagePropsBitfield: 0x00FF,
		IrisDiameter:       200,
		ImageFormat:        1,
		RawWidth:           120,
		RawHeight:          100,
		IntensityDepth:     8,
		Transformation:     0,
		Subtypes: []IrisSubtype{
			{SubtypeCode: 1, Images: []IrisImage{{ImageData: []byte{1, 2, 3}}}},
		},
	}
	encoded := rec.Encode()
	decoded, err := DecodeIrisRecord(encoded)
	if err != nil {
		t.Fatalf("DecodeIrisRecord: %v", err)
	}
	reencoded := decoded.Encode()
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("round trip mismatch:\n got  %X\n want %X", reencoded, encoded)
	}
}

func TestFingerRecordRoundTrip(t *testing.T) {
	rec := FingerRecord{
		CaptureDeviceID: 3,
		Images: []FingerImage{
			{FingerPosition: 1, ImpressionType: 0, Quality: 80, DataType: ImageDataTypeJPEG2000, Width: 500, Height: 500, ImageData: []byte{9, 9, 9}},
		},
	}
	encoded := rec.Encode()
	decoded, err := DecodeFingerRecord(encoded)
	if err != nil {
		t.Fatalf("DecodeFingerRecord: %v", err)
	}
	reencoded := decoded.Encode()
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("round trip mismatch:\n got  %X\n want %X", reencoded, encoded)
	}
}
