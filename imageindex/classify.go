package imageindex

import (
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Classify reads only the image header at path and reports its orientation.
func Classify(path string) (Orientation, error) {
	f, err := os.Open(path)
	if err != nil {
		return Any, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Any, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return OrientationOf(cfg.Width, cfg.Height), nil
}
