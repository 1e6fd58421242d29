package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultJPEGQuality matches the usual library default for evidence frames.
const DefaultJPEGQuality = 75

// EncodeDataURL creates a data: URI from bytes and MIME type.
func EncodeDataURL(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// EncodeJPEG compresses the image as baseline JPEG.
func EncodeJPEG(im *Image, quality int) ([]byte, error) {
	if err := im.Validate(); err != nil {
		return nil, err
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, im.ToRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEGDataURI encodes the image as a data:image/jpeg;base64 URI for embedding
// evidence frames directly in a JSON response.
func JPEGDataURI(im *Image, quality int) (string, error) {
	data, err := EncodeJPEG(im, quality)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(data, "image/jpeg"), nil
}

// Resize scales the image to width x height with bilinear interpolation.
func Resize(im *Image, width, height int) *Image {
	if im.Width == width && im.Height == height {
		out := NewImage(width, height)
		copy(out.Pix, im.Pix)
		return out
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), im.ToRGBA(), image.Rect(0, 0, im.Width, im.Height), draw.Src, nil)
	return FromImage(dst)
}
