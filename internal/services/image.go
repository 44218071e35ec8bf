package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	_ "image/gif"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// NormalizedImage is an upload re-encoded into a form every vision API
// accepts: JPEG for opaque images, PNG when transparency must survive.
type NormalizedImage struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	Format   string
}

type opaquer interface{ Opaque() bool }

// NormalizeImage decodes an uploaded image, scales it down to the configured
// maximum dimension and re-encodes it.
func (s *FileProcessor) NormalizeImage(data []byte) (*NormalizedImage, error) {
	img, srcFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{
			"file": fmt.Sprintf("could not decode image: %v", err),
		}}
	}

	img = s.scaleDown(img)
	bounds := img.Bounds()

	// JPEG drops the alpha channel, so transparent images stay PNG.
	opaque := true
	if o, ok := img.(opaquer); ok {
		opaque = o.Opaque()
	}

	var buf bytes.Buffer
	out := &NormalizedImage{Width: bounds.Dx(), Height: bounds.Dy(), Format: srcFormat}
	if opaque {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		out.MIMEType = "image/jpeg"
	} else {
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		out.MIMEType = "image/png"
	}
	out.Data = buf.Bytes()

	return out, nil
}

// DescribeImage summarizes an image for the conversation record and for
// models without vision support.
func DescribeImage(filename string, img *NormalizedImage) string {
	return fmt.Sprintf("%s, %dx%d pixels, %s", filename, img.Width, img.Height, strings.ToUpper(img.Format))
}

func (s *FileProcessor) scaleDown(img image.Image) image.Image {
	max := s.cfg.ImageMaxDimension
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if max <= 0 || (w <= max && h <= max) {
		return img
	}

	ratio := float64(max) / float64(w)
	if h > w {
		ratio = float64(max) / float64(h)
	}
	// Extreme aspect ratios truncate the short edge to zero.
	dw, dh := int(float64(w)*ratio), int(float64(h)*ratio)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
