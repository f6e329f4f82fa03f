package embedding

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
)

// MaxImagePixels bounds decoded images; larger payloads are rejected.
const MaxImagePixels = 40_000_000

// Canonicalize decodes a PNG, JPEG or GIF payload into RGBA pixels and
// re-encodes it as PNG, the form kept in the fragment store.
func Canonicalize(payload []byte) (Image, error) {
	if len(payload) == 0 {
		return Image{}, errors.New("empty image payload")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return Image{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxImagePixels {
		return Image{}, fmt.Errorf("unsupported image size %dx%d", cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return Image{}, fmt.Errorf("encode png: %w", err)
	}
	return Image{Pixels: rgba, PNG: buf.Bytes()}, nil
}
