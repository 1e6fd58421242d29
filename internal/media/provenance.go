package media

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// Provenance carries the authoring fields found in image metadata. It is a
// diagnostic attached to image reports and never influences the score.
type Provenance struct {
	Software          string `json:"software,omitempty"`
	CreatorTool       string `json:"creator_tool,omitempty"`
	Make              string `json:"make,omitempty"`
	Model             string `json:"model,omitempty"`
	DigitalSourceType string `json:"digital_source_type,omitempty"`
	// GeneratorHint is the known generator name matched in the fields above.
	GeneratorHint string `json:"generator_hint,omitempty"`
}

// generatorKeywords are lowercase substrings written by image generators
// and synthetic-media tooling.
var generatorKeywords = []string{
	"stable diffusion",
	"stablediffusion",
	"automatic1111",
	"comfyui",
	"midjourney",
	"dall-e",
	"dall·e",
	"firefly",
	"imagen",
	"novelai",
	"invokeai",
	"leonardo.ai",
	"flux",
	"faceswap",
	"deepfacelab",
	"trainedalgorithmicmedia",
	"compositesynthetic",
}

var provenanceTags = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"Software": true,
		"Make":     true,
		"Model":    true,
	},
	imagemeta.XMP: {
		"CreatorTool":       true,
		"DigitalSourceType": true,
	},
}

// ExtractProvenance reads EXIF and XMP authoring fields from raw image bytes.
// It returns nil when nothing relevant is present or the metadata is unreadable.
func ExtractProvenance(data []byte) *Provenance {
	if len(data) == 0 {
		return nil
	}

	p := &Provenance{}
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := provenanceTags[ti.Source]; ok {
				return tags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			s := strings.TrimSpace(tagValueString(ti.Value))
			if s == "" {
				return nil
			}
			switch ti.Tag {
			case "Software":
				p.Software = s
			case "Make":
				p.Make = s
			case "Model":
				p.Model = s
			case "CreatorTool":
				p.CreatorTool = s
			case "DigitalSourceType":
				p.DigitalSourceType = s
			default:
				return nil
			}
			found = true
			return nil
		},
	})
	if err != nil || !found {
		return nil
	}

	p.GeneratorHint = MatchGenerator(p.Software, p.CreatorTool, p.DigitalSourceType)
	return p
}

// MatchGenerator returns the first generator keyword contained in any of the
// fields (case-insensitive), or "".
func MatchGenerator(fields ...string) string {
	for _, f := range fields {
		if f == "" {
			continue
		}
		lower := strings.ToLower(f)
		for _, kw := range generatorKeywords {
			if strings.Contains(lower, kw) {
				return kw
			}
		}
	}
	return ""
}

// tagValueString extracts a string from a tag value.
// XMP values may be string or []string.
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
