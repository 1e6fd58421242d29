//go:build !gocv

package heuristics

// Backend names the extractor New returns.
const Backend = "go"

// New returns the pure Go extractor.
func New(p Params) Extractor {
	return NewStandard(p)
}
