package images

import (
	"bufio"
	"encoding/binary"
	"io"
)

const orientationTag = 0x0112

// ReadOrientation extracts the EXIF orientation (1..8) from a JPEG stream.
// Anything unreadable, absent, or out of range yields 1 (no transform).
// Only the APP1 segment is inspected; the scan stops at start-of-scan.
func ReadOrientation(r io.Reader) int {
	br := bufio.NewReader(r)

	var soi [2]byte
	if _, err := io.ReadFull(br, soi[:]); err != nil || soi[0] != 0xFF || soi[1] != 0xD8 {
		return 1
	}

	for {
		var marker [2]byte
		if _, err := io.ReadFull(br, marker[:]); err != nil {
			return 1
		}
		if marker[0] != 0xFF {
			return 1
		}
		// Standalone markers carry no length.
		if marker[1] >= 0xD0 && marker[1] <= 0xD9 {
			continue
		}
		// EXIF always precedes image data.
		if marker[1] == 0xDA {
			return 1
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return 1
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf[:]))
		if segLen < 2 {
			return 1
		}
		payload := make([]byte, segLen-2)
		if _, err := io.ReadFull(br, payload); err != nil {
			return 1
		}

		if marker[1] == 0xE1 && len(payload) > 6 && string(payload[:6]) == "Exif\x00\x00" {
			return parseTIFFOrientation(payload[6:])
		}
	}
}

// parseTIFFOrientation walks IFD0 of a TIFF blob for the orientation tag.
func parseTIFFOrientation(tiff []byte) int {
	if len(tiff) < 8 {
		return 1
	}

	var bo binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		bo = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		bo = binary.BigEndian
	default:
		return 1
	}
	if bo.Uint16(tiff[2:4]) != 0x2A {
		return 1
	}

	ifdOffset := bo.Uint32(tiff[4:8])
	if int64(ifdOffset)+2 > int64(len(tiff)) {
		return 1
	}

	count := int(bo.Uint16(tiff[ifdOffset : ifdOffset+2]))
	for i := 0; i < count; i++ {
		entry := int(ifdOffset) + 2 + i*12
		if entry+12 > len(tiff) {
			return 1
		}
		if bo.Uint16(tiff[entry:entry+2]) != orientationTag {
			continue
		}
		// SHORT value lives in the first two bytes of the value slot.
		v := int(bo.Uint16(tiff[entry+8 : entry+10]))
		if v >= 1 && v <= 8 {
			return v
		}
		return 1
	}
	return 1
}
