package source

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"farmlens/api/internal/media/sniffer"
)

// SourceImage is the single canonical in-memory representation of an image
// about to be analyzed, whether it came from a file picker or a live capture.
// It is consumed exactly once by the upload step.
type SourceImage struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Ext returns the filename extension including the dot.
func (s SourceImage) Ext() string {
	return path.Ext(s.Filename)
}

// FromReader wraps a user-selected file, preserving its original name. The
// content type comes from sniffing the leading bytes, not from the picker;
// the rest of the stream is only read once the type is accepted.
func FromReader(filename string, r io.Reader) (SourceImage, error) {
	result, head, err := sniffer.Detect(r)
	if err != nil {
		return SourceImage{}, fmt.Errorf("detect type of %s: %w", filename, err)
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return SourceImage{}, fmt.Errorf("read %s: %w", filename, err)
	}

	data := make([]byte, 0, len(head)+len(rest))
	data = append(data, head...)
	data = append(data, rest...)

	name := strings.TrimSpace(path.Base(filename))
	if name == "" || name == "." {
		name = fmt.Sprintf("upload-%d.%s", time.Now().UnixMilli(), result.Type)
	}

	return SourceImage{
		Filename:    name,
		ContentType: result.MIME,
		Data:        data,
	}, nil
}

// FromCapture wraps a camera still, which is always JPEG, under a
// deterministic time-based name.
func FromCapture(data []byte, takenAt time.Time) SourceImage {
	return SourceImage{
		Filename:    fmt.Sprintf("capture-%d.jpg", takenAt.UnixMilli()),
		ContentType: "image/jpeg",
		Data:        data,
	}
}
