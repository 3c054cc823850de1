package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/capture"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	fileNameLayout = "20060102_150405"

	// maxSameSecond bounds the suffix search when several snapshots are
	// saved within one second.
	maxSameSecond = 100
)

// ErrInvalidFrame is returned for frames whose pixels do not match their
// dimensions.
var ErrInvalidFrame = errors.New("snapshot: invalid frame")

// Image wraps a frame's pixels as an image.Gray without copying.
func Image(f capture.Frame) (*image.Gray, error) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pixels) != f.Width*f.Height {
		return nil, fmt.Errorf("%w: %dx%d with %d pixels", ErrInvalidFrame, f.Width, f.Height, len(f.Pixels))
	}
	return &image.Gray{
		Pix:    f.Pixels,
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}, nil
}

// Encode writes the frame to w as PNG.
func Encode(w io.Writer, f capture.Frame) error {
	img, err := Image(f)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// EncodePNG returns the frame as PNG bytes.
func EncodePNG(f capture.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName returns the snapshot file name for t in local time.
func FileName(t time.Time) string {
	return "digital_" + t.Format(fileNameLayout) + ".png"
}

// Writer saves snapshots into one directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a writer for dir. The directory is created on first save.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the target directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Save encodes the frame and writes it under a fresh name. An existing file
// is never overwritten; a second snapshot in the same second gets a _2
// suffix, and so on.
func (w *Writer) Save(f capture.Frame) (string, error) {
	data, err := EncodePNG(f)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, dirPermissions); err != nil {
		return "", fmt.Errorf("creating captures directory: %w", err)
	}

	base := FileName(w.now())
	stem := base[:len(base)-len(".png")]

	for n := 1; n <= maxSameSecond; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d.png", stem, n)
		}
		path := filepath.Join(w.dir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating snapshot: %w", err)
		}

		if _, err := file.Write(data); err != nil {
			file.Close()    //nolint:errcheck // Write error takes precedence
			os.Remove(path) //nolint:errcheck // Best effort cleanup
			return "", fmt.Errorf("writing snapshot: %w", err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("closing snapshot: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("snapshot: no free file name for %s", base)
}
