package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// DefaultQuality is the JPEG quality used for captures and exports.
const DefaultQuality = 90

// Filename prefixes.
const (
	KindSingle  = "photobooth" // single shot export
	KindCollage = "collage"    // composed collage
	KindGallery = "photo"      // download of a gallery entry
)

const dataURLPrefix = "data:image/jpeg;base64,"

// Encode encodes img as JPEG. Quality outside 1..100 falls back to
// DefaultQuality.
func Encode(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes an encoded still.
func Decode(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	return img, nil
}

// DataURL embeds JPEG bytes as a self-contained data URL.
func DataURL(data []byte) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL extracts the bytes of a base64 JPEG data URL.
func ParseDataURL(url string) ([]byte, error) {
	if !strings.HasPrefix(url, "data:") {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(url[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return data, nil
}

// Filename builds "<kind>-<layout>-<millis>.jpg", or "<kind>-<millis>.jpg"
// when layout is empty. Characters that are awkward in file names are
// spelled out ("1+2" becomes "1plus2").
func Filename(kind, layout string, t time.Time) string {
	ts := strconv.FormatInt(t.UnixMilli(), 10)
	if layout == "" {
		return kind + "-" + ts + ".jpg"
	}
	return kind + "-" + sanitize(layout) + "-" + ts + ".jpg"
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '+':
			b.WriteString("plus")
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Saver is the file-save collaborator: it receives finished exports.
type Saver interface {
	Save(name string, data []byte) error
}

// DirSaver writes exports into a directory.
type DirSaver struct {
	Dir string
}

// NewDirSaver returns a saver writing into dir.
func NewDirSaver(dir string) *DirSaver {
	return &DirSaver{Dir: dir}
}

// Save implements Saver. The name must be a plain file name.
func (d *DirSaver) Save(name string, data []byte) error {
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid export name %q", name)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(d.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	debug.Info("Saved %s (%d bytes)", path, len(data))
	return nil
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(name string, data []byte) error

// Save implements Saver.
func (f SaverFunc) Save(name string, data []byte) error { return f(name, data) }
