// Package imagefile opens, probes and encodes raster image files.
package imagefile

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // 只注册解码器
)

var (
	ErrImageNotFound     = errors.New("image file not found")
	ErrDecode            = errors.New("decode image")
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// Open decodes the image at path. The file is closed before returning.
func Open(path string) (image.Image, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrDecode, path, err)
	}
	return img, nil
}

// Dimensions reads only the image header and returns width and height.
func Dimensions(path string) (width, height int, err error) {
	f, err := open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w %s: %v", ErrDecode, path, err)
	}
	return cfg.Width, cfg.Height, nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at path: %s", ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	info, err := f.Stat()
	if err == nil && info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w at path: %s (is a directory)", ErrImageNotFound, path)
	}
	return f, nil
}

// FormatFor picks an output format from an explicit name or the file extension.
// No format and no extension means png.
func FormatFor(format, path string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch f {
	case "jpg", "jpeg":
		return "jpeg"
	case "tif", "tiff":
		return "tiff"
	case "png", "":
		return "png"
	default:
		return f
	}
}

// Encode writes img to w in the given format (png, jpeg, gif, bmp, tiff).
func Encode(w io.Writer, img image.Image, format string) error {
	switch FormatFor(format, "") {
	case "png":
		return png.Encode(w, img)
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, nil)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Save encodes img into path, format chosen by FormatFor.
func Save(path, format string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := Encode(f, img, FormatFor(format, path)); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode output: %w", err)
	}
	return f.Close()
}
