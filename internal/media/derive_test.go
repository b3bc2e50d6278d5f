package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"photovault/internal/mediatypes"
)

// pngBytes encodes a solid-color test image, optionally with a
// transparent region.
func pngBytes(t *testing.T, width, height int, transparent bool) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{R: 200, G: 30, B: 30, A: 255}
			if transparent && x < width/2 {
				c.A = 0
			}
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func grayPNGBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func TestDeriveBoundsAndFormat(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		maxW, maxH int
	}{
		{"Landscape", 400, 200, 100, 50},
		{"Portrait", 200, 400, 50, 100},
		{"Square", 300, 300, 100, 100},
		{"Already small", 40, 60, 40, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pngBytes(t, tt.width, tt.height, false)

			thumb, err := Derive(data, mediatypes.KindImage)
			if err != nil {
				t.Fatalf("Derive failed: %v", err)
			}

			img, format, err := image.Decode(bytes.NewReader(thumb))
			if err != nil {
				t.Fatalf("decoding thumbnail: %v", err)
			}
			if format != "jpeg" {
				t.Errorf("format = %q, want jpeg", format)
			}
			if img.Bounds().Dx() > ThumbMaxEdge || img.Bounds().Dy() > ThumbMaxEdge {
				t.Errorf("thumbnail %dx%d exceeds %dpx bound",
					img.Bounds().Dx(), img.Bounds().Dy(), ThumbMaxEdge)
			}
			if img.Bounds().Dx() != tt.maxW || img.Bounds().Dy() != tt.maxH {
				t.Errorf("thumbnail %dx%d, want %dx%d",
					img.Bounds().Dx(), img.Bounds().Dy(), tt.maxW, tt.maxH)
			}
		})
	}
}

func TestDeriveFlattensTransparency(t *testing.T) {
	data := pngBytes(t, 200, 200, true)

	thumb, err := Derive(data, mediatypes.KindImage)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}

	// The formerly transparent half must have flattened to white.
	_, _, _, a := img.At(5, 50).RGBA()
	if a != 0xffff {
		t.Errorf("alpha = %d, want fully opaque", a)
	}
	r, g, b, _ := img.At(5, 50).RGBA()
	if r < 0xf000 || g < 0xf000 || b < 0xf000 {
		t.Errorf("transparent region flattened to %v, want near-white", img.At(5, 50))
	}
}

func TestDeriveGrayscaleStaysGray(t *testing.T) {
	data := grayPNGBytes(t, 200, 200)

	thumb, err := Derive(data, mediatypes.KindImage)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Errorf("thumbnail decoded as %T, want *image.Gray", img)
	}
}

func TestDeriveUnsupportedFormat(t *testing.T) {
	_, err := Derive([]byte("this is not an image at all"), mediatypes.KindImage)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDeriveCorruptInput(t *testing.T) {
	// Valid PNG signature followed by garbage: recognized, but broken.
	corrupt := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("garbage-not-chunks")...)

	_, err := Derive(corrupt, mediatypes.KindImage)
	if !errors.Is(err, ErrCorruptInput) {
		t.Errorf("err = %v, want ErrCorruptInput", err)
	}
}

func TestDeriveUnknownKind(t *testing.T) {
	_, err := Derive(pngBytes(t, 10, 10, false), mediatypes.KindOther)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDeriveVideoCorrupt(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}

	_, err := Derive([]byte("definitely not a video container"), mediatypes.KindVideo)
	if !errors.Is(err, ErrCorruptInput) {
		t.Errorf("err = %v, want ErrCorruptInput", err)
	}
}

func TestDeriveVideo(t *testing.T) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not available")
	}

	// Synthesize a 2 second test clip.
	clipPath := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command(ffmpeg,
		"-f", "lavfi",
		"-i", "testsrc=duration=2:size=320x240:rate=10",
		"-pix_fmt", "yuv420p",
		clipPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not synthesize test clip: %v: %s", err, out)
	}

	data, err := os.ReadFile(clipPath)
	if err != nil {
		t.Fatalf("reading test clip: %v", err)
	}

	thumb, err := Derive(data, mediatypes.KindVideo)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decoding thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if img.Bounds().Dx() > ThumbMaxEdge || img.Bounds().Dy() > ThumbMaxEdge {
		t.Errorf("thumbnail %dx%d exceeds %dpx bound",
			img.Bounds().Dx(), img.Bounds().Dy(), ThumbMaxEdge)
	}
}
