package bot

import (
	"path"
	"strings"

	"github.com/example/polybot/internal/prediction"
)

var supportedExtensions = map[string]struct{}{
	"bmp":  {},
	"dng":  {},
	"jpeg": {},
	"jpg":  {},
	"mpo":  {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"webp": {},
}

const fallbackExtension = ".jpg"

// ResolveImageKey names the bucket object for an uploaded photo: the caption
// when there is one, otherwise the platform filename, under images/. A .jpg
// suffix is added unless the name already ends in a supported image extension.
func ResolveImageKey(caption, filename string) string {
	name := caption
	if name == "" {
		name = filename
	}
	if !hasSupportedExtension(name) {
		name += fallbackExtension
	}
	return prediction.ImagesPrefix + name
}

func hasSupportedExtension(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	_, ok := supportedExtensions[ext]
	return ok
}
