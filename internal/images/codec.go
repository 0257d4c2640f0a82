package images

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	_ "image/gif" // decode-only

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// DefaultQuality is the JPEG quality used when settings name none.
const DefaultQuality = 85

// CanonicalFormat maps accepted format spellings to the canonical name used
// for file extensions and encoder selection.
func CanonicalFormat(format string) (string, bool) {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "jpeg", true
	case "png":
		return "png", true
	default:
		return "", false
	}
}

// ProbeFormat verifies the output format by encoding a 1×1 image. An
// unsupported format turns the image plugin into a no-op.
func ProbeFormat(format string, quality int) error {
	canonical, ok := CanonicalFormat(format)
	if !ok {
		return fmt.Errorf("unsupported image format %q", format)
	}
	probe := image.NewRGBA(image.Rect(0, 0, 1, 1))
	return encodeImage(io.Discard, probe, canonical, quality)
}

// readNativeWidth reads the source's pixel width from the header without a
// full decode.
func readNativeWidth(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("read image header: %w", err)
	}
	return cfg.Width, nil
}

// encodeWidth produces one derivative: reload the source fresh, normalize
// orientation and color, scale to the target width (and under maxHeight),
// and encode into dst. Reloading per width bounds peak memory to one decoded
// image.
func encodeWidth(srcPath, dst string, width, maxHeight int, format string, quality int) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	orientation := ReadOrientation(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoded, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", srcPath, err)
	}

	img := normalizeColor(decoded)
	img = applyOrientation(img, orientation)
	img = scaleToWidth(img, width)
	if maxHeight > 0 && img.Bounds().Dy() > maxHeight {
		img = scaleToHeight(img, maxHeight)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := encodeImage(out, img, format, quality); err != nil {
		_ = out.Close()
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	return out.Close()
}

func encodeImage(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case "jpeg":
		if quality <= 0 {
			quality = DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// normalizeColor converts any decoded image to RGBA with transparency
// flattened onto white. Gray, paletted, and CMYK inputs all come out as
// plain RGB over the same canvas.
func normalizeColor(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Over)
	return dst
}

// applyOrientation maps the stored pixels into display orientation.
// Right-angle transforms use nearest-neighbor, which is exact for them.
func applyOrientation(src *image.RGBA, orientation int) *image.RGBA {
	if orientation <= 1 || orientation > 8 {
		return src
	}

	w := float64(src.Bounds().Dx())
	h := float64(src.Bounds().Dy())

	var m f64.Aff3
	var outW, outH int
	switch orientation {
	case 2: // mirrored horizontally
		m = f64.Aff3{-1, 0, w, 0, 1, 0}
		outW, outH = int(w), int(h)
	case 3: // rotated 180
		m = f64.Aff3{-1, 0, w, 0, -1, h}
		outW, outH = int(w), int(h)
	case 4: // mirrored vertically
		m = f64.Aff3{1, 0, 0, 0, -1, h}
		outW, outH = int(w), int(h)
	case 5: // transposed
		m = f64.Aff3{0, 1, 0, 1, 0, 0}
		outW, outH = int(h), int(w)
	case 6: // rotated 90 clockwise
		m = f64.Aff3{0, -1, h, 1, 0, 0}
		outW, outH = int(h), int(w)
	case 7: // transversed
		m = f64.Aff3{0, -1, h, -1, 0, w}
		outW, outH = int(h), int(w)
	case 8: // rotated 270 clockwise
		m = f64.Aff3{0, 1, 0, -1, 0, w}
		outW, outH = int(h), int(w)
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.NearestNeighbor.Transform(dst, m, src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// scaleToWidth scales preserving aspect ratio; a target at native width is a
// pass-through.
func scaleToWidth(src *image.RGBA, width int) *image.RGBA {
	b := src.Bounds()
	if width <= 0 || width == b.Dx() {
		return src
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func scaleToHeight(src *image.RGBA, height int) *image.RGBA {
	b := src.Bounds()
	if height <= 0 || height == b.Dy() {
		return src
	}
	width := b.Dx() * height / b.Dy()
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
