//go:build gocv

package heuristics

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/straja-ai/fakescan/internal/media"
)

// Backend names the extractor New returns.
const Backend = "opencv"

// New returns the OpenCV extractor.
func New(p Params) Extractor {
	return &OpenCV{Params: p.withDefaults()}
}

// OpenCV computes the heuristics with gocv. Results agree with Standard up
// to floating point summation order.
type OpenCV struct {
	Params Params
}

func (o *OpenCV) Extract(img *media.Image) Scores {
	mustValid(img)
	p := o.Params.withDefaults()

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		panic(fmt.Sprintf("heuristics: convert image to Mat: %v", err))
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)
	sd := stddev.GetDoubleAt(0, 0)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(mat, &edges, float32(p.CannyLow), float32(p.CannyHigh))
	edgeDensity := float64(gocv.CountNonZero(edges)) / float64(img.Width*img.Height)

	_, maxVal, _, _ := gocv.MinMaxLoc(gray)

	return Scores{
		Texture:  clamp01(sd * sd / p.TextureCeiling),
		Color:    ColorAnomaly(img),
		Boundary: clamp01(edgeDensity),
		EyeGlint: clamp01(float64(maxVal) / 255),
	}
}
