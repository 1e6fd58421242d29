package video

import (
	"github.com/corona10/goimagehash"
)

// dedupe keeps the first of each group of perceptually identical evidence
// frames. Frames that cannot be hashed are kept.
func dedupe(evidence []FrameRecord, distance int) []FrameRecord {
	if len(evidence) < 2 {
		return evidence
	}
	var (
		kept   []FrameRecord
		hashes []*goimagehash.ImageHash
	)
	for _, f := range evidence {
		if f.Image == nil {
			kept = append(kept, f)
			continue
		}
		hash, err := goimagehash.DifferenceHash(f.Image.ToRGBA())
		if err != nil {
			kept = append(kept, f)
			continue
		}
		dup := false
		for _, h := range hashes {
			if d, err := hash.Distance(h); err == nil && d < distance {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		hashes = append(hashes, hash)
		kept = append(kept, f)
	}
	return kept
}
