package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tiffLE is a minimal little-endian TIFF: one IFD0 entry holding the
// orientation tag as a SHORT.
func tiffLE(orientation uint16) []byte {
	return []byte{
		'I', 'I', 0x2A, 0x00,
		0x08, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x12, 0x01,
		0x03, 0x00,
		0x01, 0x00, 0x00, 0x00,
		byte(orientation), byte(orientation >> 8), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
}

func tiffBE(orientation uint16) []byte {
	return []byte{
		'M', 'M', 0x00, 0x2A,
		0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12,
		0x00, 0x03,
		0x00, 0x00, 0x00, 0x01,
		byte(orientation >> 8), byte(orientation), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
}

// app1Segment wraps a TIFF blob in a JPEG APP1 EXIF segment.
func app1Segment(tiff []byte) []byte {
	payload := append([]byte("Exif\x00\x00"), tiff...)
	segLen := len(payload) + 2
	seg := []byte{0xFF, 0xE1, byte(segLen >> 8), byte(segLen)}
	return append(seg, payload...)
}

// exifJPEG is just enough JPEG structure for the orientation scanner: SOI,
// APP1, EOI.
func exifJPEG(tiff []byte) []byte {
	out := []byte{0xFF, 0xD8}
	out = append(out, app1Segment(tiff)...)
	return append(out, 0xFF, 0xD9)
}

func TestReadOrientation_LittleEndian(t *testing.T) {
	for want := 1; want <= 8; want++ {
		got := ReadOrientation(bytes.NewReader(exifJPEG(tiffLE(uint16(want)))))
		assert.Equal(t, want, got)
	}
}

func TestReadOrientation_BigEndian(t *testing.T) {
	got := ReadOrientation(bytes.NewReader(exifJPEG(tiffBE(3))))
	assert.Equal(t, 3, got)
}

func TestReadOrientation_OutOfRangeValue_DefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, ReadOrientation(bytes.NewReader(exifJPEG(tiffLE(0)))))
	assert.Equal(t, 1, ReadOrientation(bytes.NewReader(exifJPEG(tiffLE(9)))))
}

func TestReadOrientation_PlainEncoderOutput_DefaultsToOne(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)), nil))

	assert.Equal(t, 1, ReadOrientation(&buf))
}

func TestReadOrientation_NotJPEG_DefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, ReadOrientation(bytes.NewReader([]byte("not an image"))))
	assert.Equal(t, 1, ReadOrientation(bytes.NewReader(nil)))
}

func TestReadOrientation_TruncatedSegment_DefaultsToOne(t *testing.T) {
	full := exifJPEG(tiffLE(6))
	assert.Equal(t, 1, ReadOrientation(bytes.NewReader(full[:8])))
}

func TestEncodeWidth_OrientationSixSwapsDimensions(t *testing.T) {
	// A 4x2 image tagged "rotate 90 CW" must come out 2x4.
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 2)), nil))
	raw := buf.Bytes()

	tagged := []byte{0xFF, 0xD8}
	tagged = append(tagged, app1Segment(tiffLE(6))...)
	tagged = append(tagged, raw[2:]...)

	dir := t.TempDir()
	src := filepath.Join(dir, "rot.jpg")
	require.NoError(t, os.WriteFile(src, tagged, 0o644))

	dst := filepath.Join(dir, "rot-2.jpeg")
	require.NoError(t, encodeWidth(src, dst, 2, 0, "jpeg", DefaultQuality))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Width)
	assert.Equal(t, 4, cfg.Height)
}

func TestEncodeWidth_MaxHeightShrinksFurther(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tall.png")
	writePNG(t, src, 100, 80)

	dst := filepath.Join(dir, "tall-50.jpeg")
	require.NoError(t, encodeWidth(src, dst, 50, 20, "jpeg", DefaultQuality))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
}

func TestEncodeWidth_PNGOutputDecodesAsPNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pic.png")
	writePNG(t, src, 30, 30)

	dst := filepath.Join(dir, "pic-15.png")
	require.NoError(t, encodeWidth(src, dst, 15, 0, "png", DefaultQuality))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 15, cfg.Width)
}

func TestCanonicalFormat_Aliases(t *testing.T) {
	for in, want := range map[string]string{"jpeg": "jpeg", "jpg": "jpeg", "JPEG": "jpeg", "png": "png", "PNG": "png"} {
		got, ok := CanonicalFormat(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	_, ok := CanonicalFormat("webp")
	assert.False(t, ok)
}

func TestProbeFormat_SupportedAndNot(t *testing.T) {
	require.NoError(t, ProbeFormat("jpeg", DefaultQuality))
	require.NoError(t, ProbeFormat("png", DefaultQuality))
	require.Error(t, ProbeFormat("avif", DefaultQuality))
}
