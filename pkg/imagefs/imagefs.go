// Package imagefs discovers and decodes the image assets of a source
// directory.
package imagefs

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Register the decoders for the supported formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// supportedExtensions are matched case-insensitively.
var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// Asset is an image discovered in a source directory. Filename is unique
// within the directory and Path is the resolved absolute location.
type Asset struct {
	Filename string
	Path     string
}

// Image is a decoded Asset. Data holds the original encoded bytes so model
// backends can ship them without re-encoding.
type Image struct {
	Asset

	Data   []byte
	Format string
	Width  int
	Height int
}

// MimeType returns the media type of the encoded image data.
func (i Image) MimeType() string {
	switch i.Format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// IsSupported reports whether name carries a supported image extension.
func IsSupported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Discover lists the supported image files directly under dir, in
// directory-listing (lexical) order. Subdirectories are not descended into.
func Discover(dir string) ([]Asset, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving source directory: %w", err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}

	assets := make([]Asset, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsSupported(entry.Name()) {
			continue
		}
		assets = append(assets, Asset{
			Filename: entry.Name(),
			Path:     filepath.Join(abs, entry.Name()),
		})
	}

	return assets, nil
}

// Load reads and fully decodes the asset. Truncated or corrupt files fail
// here rather than inside a model call.
func Load(asset Asset) (Image, error) {
	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return Image{}, fmt.Errorf("reading %s: %w", asset.Filename, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decoding %s: %w", asset.Filename, err)
	}

	bounds := img.Bounds()
	return Image{
		Asset:  asset,
		Data:   data,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
