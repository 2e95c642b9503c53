package frames

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/abworrall/direct-pose/pkg/emath"
)

const (
	CameraIntensity = 0
	CameraDepth     = 1
)

var ErrUnknownFormat = errors.New("unknown image format")

// FramePath is where a sequence keeps frame i for a camera, e.g.
// data/image_0/000699.png for the intensity image of frame 699.
func FramePath(dir string, camera, i int) string {
	return fmt.Sprintf("%s/image_%d/%06d.png", dir, camera, i)
}

func loadImage(filename string) (image.Image, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open+r '%s'", filename)
	}
	defer reader.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		img, err = png.Decode(reader)
	case ".tif", ".tiff":
		img, err = tiff.Decode(reader)
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "'%s'", filename)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode '%s'", filename)
	}
	return img, nil
}

// LoadGrayscale loads an intensity image into [0,255]; color images
// are reduced to luminance.
func LoadGrayscale(filename string) (emath.FloatGrid, error) {
	img, err := loadImage(filename)
	if err != nil {
		return emath.FloatGrid{}, err
	}
	return emath.NewFloatGridFromImage(img), nil
}

// LoadRaw16 loads a depth map, keeping the raw sensor units.
func LoadRaw16(filename string) (emath.FloatGrid, error) {
	img, err := loadImage(filename)
	if err != nil {
		return emath.FloatGrid{}, err
	}
	return emath.NewFloatGridFromRaw(img), nil
}

// LoadFrame loads the intensity image and depth map of frame i.
func LoadFrame(dir string, i int) (emath.FloatGrid, emath.FloatGrid, error) {
	img, err := LoadGrayscale(FramePath(dir, CameraIntensity, i))
	if err != nil {
		return img, emath.FloatGrid{}, errors.Wrapf(err, "frame %d", i)
	}
	depth, err := LoadRaw16(FramePath(dir, CameraDepth, i))
	if err != nil {
		return img, depth, errors.Wrapf(err, "frame %d", i)
	}
	return img, depth, nil
}

func WritePNG(img image.Image, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return errors.Wrapf(err, "open+w '%s'", filename)
	} else {
		defer writer.Close()
		return png.Encode(writer, img)
	}
}
