package analyzer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/straja-ai/fakescan/internal/inference"
)

var extensions = map[string]inference.FileType{
	".jpg":  inference.FileTypeImage,
	".jpeg": inference.FileTypeImage,
	".png":  inference.FileTypeImage,
	".mp4":  inference.FileTypeVideo,
	".mov":  inference.FileTypeVideo,
	".avi":  inference.FileTypeVideo,
	".mkv":  inference.FileTypeVideo,
}

// KindOf dispatches on the filename extension, case-insensitively. Content
// is never sniffed.
func KindOf(filename string) (inference.FileType, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if kind, ok := extensions[ext]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("extension %q: %w", ext, inference.ErrUnsupportedMedia)
}
