// Package category classifies uploaded files into operation categories.
// Classification is a pure function of the filename.
package category

import (
	"path"
	"strings"
)

// Category drives which size ceiling and monthly counter applies to a file.
type Category string

const (
	Regular Category = "regular"
	Raw     Category = "raw"
	Unknown Category = "unknown"
)

// regularFormats are formats handled by the standard compression pipeline.
var regularFormats = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"jpe":  true,
	"jfif": true,
	"png":  true,
	"webp": true,
	"avif": true,
	"gif":  true,
	"bmp":  true,
	"tif":  true,
	"tiff": true,
	"svg":  true,
	"ico":  true,
	"heic": true,
	"heif": true,
}

// rawFormats are camera RAW formats, decoded before compression.
var rawFormats = map[string]bool{
	"cr2": true, // Canon
	"cr3": true,
	"crw": true,
	"nef": true, // Nikon
	"nrw": true,
	"arw": true, // Sony
	"srf": true,
	"sr2": true,
	"dng": true, // Adobe / generic
	"orf": true, // Olympus
	"raf": true, // Fujifilm
	"rw2": true, // Panasonic
	"pef": true, // Pentax
	"srw": true, // Samsung
	"3fr": true, // Hasselblad
	"iiq": true, // Phase One
	"x3f": true, // Sigma
	"erf": true, // Epson
	"mrw": true, // Minolta
	"kdc": true, // Kodak
}

// Format returns the lower-cased extension of filename without the dot.
// Returns "" when the name has no extension.
func Format(filename string) string {
	name := strings.TrimSpace(filename)
	// Browsers on Windows may send the full client path.
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Classify maps a filename to its Category.
// This is a PURE function.
func Classify(filename string) Category {
	f := Format(filename)
	switch {
	case f == "":
		return Unknown
	case regularFormats[f]:
		return Regular
	case rawFormats[f]:
		return Raw
	default:
		return Unknown
	}
}

// IsKnown reports whether c is a category the pipeline can process.
func (c Category) IsKnown() bool {
	return c == Regular || c == Raw
}

// Formats returns the supported extensions for a category (unordered).
func Formats(c Category) []string {
	var src map[string]bool
	switch c {
	case Regular:
		src = regularFormats
	case Raw:
		src = rawFormats
	default:
		return nil
	}
	out := make([]string, 0, len(src))
	for f := range src {
		out = append(out, f)
	}
	return out
}
