package receipt

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// maxSide is the longest edge sent to OCR. Phone photos are far larger
// than OCR engines need.
const maxSide = 2000

// Prepare decodes a JPEG, PNG or WebP receipt photo, fixes its EXIF
// orientation, shrinks it to fit maxSide, converts it to grayscale and
// re-encodes it as JPEG.
func Prepare(img Image) (Image, error) {
	src, err := decode(img)
	if err != nil {
		return Image{}, err
	}

	b := src.Bounds()
	if b.Dx() > maxSide || b.Dy() > maxSide {
		src = imaging.Fit(src, maxSide, maxSide, imaging.Lanczos)
	}
	gray := imaging.Grayscale(src)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, gray, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return Image{}, fmt.Errorf("failed to encode receipt image: %w", err)
	}

	name := strings.TrimSuffix(img.Filename, filepath.Ext(img.Filename))
	if name == "" {
		name = "receipt"
	}
	return Image{Data: buf.Bytes(), Filename: name + ".jpg", ContentType: "image/jpeg"}, nil
}

func decode(img Image) (image.Image, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("empty receipt image")
	}

	ct := img.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(img.Data)
	}

	var (
		out image.Image
		err error
	)
	switch {
	case strings.Contains(ct, "webp"), strings.EqualFold(filepath.Ext(img.Filename), ".webp"):
		out, err = webp.Decode(bytes.NewReader(img.Data))
	default:
		out, err = imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("unsupported receipt image %s: %w", ct, err)
	}
	return out, nil
}
