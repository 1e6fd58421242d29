package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/fakescan/internal/inference"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(2, 1, color.NRGBA{B: 200, G: 10, A: 255})

	img, err := Decode(encodePNG(t, src))
	require.NoError(t, err)
	require.NoError(t, img.Validate())
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)

	r, g, b := img.RGB(0, 0)
	assert.Equal(t, []uint8{255, 0, 0}, []uint8{r, g, b})
	r, g, b = img.RGB(2, 1)
	assert.Equal(t, []uint8{0, 10, 200}, []uint8{r, g, b})
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, inference.ErrInvalidMedia))
		})
	}
}

func TestFromImageSubImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(2, 2, color.RGBA{R: 9, G: 8, B: 7, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	img := FromImage(sub)
	require.Equal(t, 2, img.Width)
	r, g, b := img.RGB(0, 0)
	assert.Equal(t, []uint8{9, 8, 7}, []uint8{r, g, b})
}

func TestGrayMatchesFixedPointWeights(t *testing.T) {
	img := NewImage(4, 1)
	img.Set(0, 0, 255, 255, 255)
	img.Set(1, 0, 255, 0, 0)
	img.Set(2, 0, 0, 255, 0)
	img.Set(3, 0, 0, 0, 255)

	assert.Equal(t, []uint8{255, 76, 150, 29}, img.Gray())
}

func TestValidate(t *testing.T) {
	assert.Error(t, (*Image)(nil).Validate())
	assert.Error(t, NewImage(0, 5).Validate())
	assert.Error(t, (&Image{Width: 2, Height: 2, Pix: make([]uint8, 5)}).Validate())
	assert.NoError(t, NewImage(1, 1).Validate())
}

func TestJPEGDataURI(t *testing.T) {
	img := NewImage(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, uint8(x*30), uint8(y*30), 128)
		}
	}

	uri, err := JPEGDataURI(img, DefaultJPEGQuality)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	back, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 8, back.Width)
	assert.Equal(t, 8, back.Height)
}

func TestJPEGDataURIRejectsInvalidImage(t *testing.T) {
	_, err := JPEGDataURI(&Image{Width: 2, Height: 2}, 75)
	assert.Error(t, err)
}

func TestResize(t *testing.T) {
	img := NewImage(10, 6)
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	out := Resize(img, 4, 3)
	require.NoError(t, out.Validate())
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 3, out.Height)
	r, _, _ := out.RGB(1, 1)
	assert.InDelta(t, 200, int(r), 1)

	same := Resize(img, 10, 6)
	assert.Equal(t, img.Pix, same.Pix)
	same.Pix[0] = 1
	assert.Equal(t, uint8(200), img.Pix[0], "resize must not alias the source buffer")
}

func TestExtractProvenanceWithoutMetadata(t *testing.T) {
	assert.Nil(t, ExtractProvenance(nil))
	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	assert.Nil(t, ExtractProvenance(data))
}

func TestMatchGenerator(t *testing.T) {
	assert.Equal(t, "comfyui", MatchGenerator("", "ComfyUI v0.2"))
	assert.Equal(t, "trainedalgorithmicmedia",
		MatchGenerator("http://cv.iptc.org/newscodes/digitalsourcetype/trainedAlgorithmicMedia"))
	assert.Equal(t, "", MatchGenerator("Adobe Photoshop 25.0", "Canon EOS R5"))
}
