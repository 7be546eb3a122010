package testutils

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// WritePNG writes a small solid-colour PNG derived from seed and returns
// its path.
func WritePNG(dir, name string, seed int) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	c := color.RGBA{R: uint8(seed * 37), G: uint8(seed * 91), B: uint8(seed * 13), A: 255}
	for y := range 8 {
		for x := range 8 {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", err
	}
	return path, nil
}

// WriteImages writes n synthetic PNGs named img_000.png, img_001.png, ...
// and returns their filenames in lexical order.
func WriteImages(dir string, n int) ([]string, error) {
	names := make([]string, 0, n)
	for i := range n {
		name := fmt.Sprintf("img_%03d.png", i)
		if _, err := WritePNG(dir, name, i); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// WriteCorrupt writes a file with an image extension that does not decode.
func WriteCorrupt(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, []byte("not an image"), 0o600)
}
