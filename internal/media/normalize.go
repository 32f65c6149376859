package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-user-accounts/pkg/apierror"
)

const (
	normalizedContentType = "image/jpeg"
	normalizedExtension   = ".jpg"
	jpegQuality           = 90
)

// Normalizer decodes uploaded images, bounds their size and re-encodes them
// as JPEG so stored media is uniform.
type Normalizer struct {
	maxDimension int
}

func NewNormalizer(maxDimension int) *Normalizer {
	if maxDimension <= 0 {
		maxDimension = 1024
	}
	return &Normalizer{maxDimension: maxDimension}
}

func (n *Normalizer) Normalize(upload Upload) (Upload, error) {
	if len(upload.Data) == 0 {
		return Upload{}, apierror.New("BAD_REQUEST", "uploaded file is empty", upload.Filename, http.StatusBadRequest)
	}

	// TIFF is not sniffed by DetectMIME, so octet-stream falls through to decoding.
	mimeType := DetectMIME(upload.Data)
	if !IsImageMIME(mimeType) && mimeType != "application/octet-stream" {
		return Upload{}, apierror.New("UNSUPPORTED_TYPE", "only image uploads are allowed", mimeType, http.StatusUnsupportedMediaType)
	}

	src, _, err := image.Decode(bytes.NewReader(upload.Data))
	if err != nil {
		return Upload{}, apierror.New("UNSUPPORTED_TYPE", "cannot decode image", err.Error(), http.StatusUnsupportedMediaType)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Upload{}, apierror.New("UNSUPPORTED_TYPE", "invalid image dimensions", upload.Filename, http.StatusUnsupportedMediaType)
	}

	width, height := fitWithin(bounds.Dx(), bounds.Dy(), n.maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// JPEG has no alpha; paint white first so transparent pixels do not turn black.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Upload{}, fmt.Errorf("encode image: %w", err)
	}

	return Upload{
		Filename:    strings.TrimSuffix(upload.Filename, extensionOf(upload.Filename)) + normalizedExtension,
		ContentType: normalizedContentType,
		Data:        buf.Bytes(),
	}, nil
}

func (n *Normalizer) Extension() string {
	return normalizedExtension
}

func fitWithin(width int, height int, maxDimension int) (int, int) {
	maxDim := width
	if height > maxDim {
		maxDim = height
	}

	scale := float64(maxDimension) / float64(maxDim)
	if scale > 1 {
		scale = 1
	}

	targetWidth := int(math.Round(float64(width) * scale))
	targetHeight := int(math.Round(float64(height) * scale))
	if targetWidth < 1 {
		targetWidth = 1
	}
	if targetHeight < 1 {
		targetHeight = 1
	}
	return targetWidth, targetHeight
}

func extensionOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 {
		return ""
	}
	return filename[idx:]
}
