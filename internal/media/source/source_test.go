package source

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlens/api/internal/media/sniffer"
)

func TestFromReaderSniffsContentType(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}

	img, err := FromReader("herd.png", bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, "herd.png", img.Filename)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, ".png", img.Ext())
	assert.Equal(t, png, img.Data)
}

func TestFromReaderKeepsFullPayload(t *testing.T) {
	// Larger than the sniff window, so the head and the remainder must be
	// stitched back together.
	payload := append([]byte{0xff, 0xd8, 0xff, 0xe0}, bytes.Repeat([]byte{0x42}, 4096)...)

	img, err := FromReader("cow.jpg", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, img.Data)
}

func TestFromReaderStripsDirectories(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}

	img, err := FromReader("/mnt/sdcard/DCIM/cow.jpg", bytes.NewReader(jpeg))
	require.NoError(t, err)
	assert.Equal(t, "cow.jpg", img.Filename)
}

func TestFromReaderRejectsUnknownPayload(t *testing.T) {
	_, err := FromReader("notes.txt", strings.NewReader("just some text"))
	assert.ErrorIs(t, err, sniffer.ErrUnknownType)
}

func TestFromReaderRejectsEmptyPayload(t *testing.T) {
	_, err := FromReader("empty.jpg", bytes.NewReader(nil))
	assert.ErrorIs(t, err, sniffer.ErrUnknownType)
}

func TestFromReaderNamesNamelessUploads(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}

	img, err := FromReader("", bytes.NewReader(jpeg))
	require.NoError(t, err)
	assert.Regexp(t, `^upload-\d+\.jpeg$`, img.Filename)
}

func TestFromCaptureNaming(t *testing.T) {
	takenAt := time.UnixMilli(1748779200123)

	img := FromCapture([]byte{0xff, 0xd8, 0xff}, takenAt)
	assert.Equal(t, "capture-1748779200123.jpg", img.Filename)
	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, ".jpg", img.Ext())
}
