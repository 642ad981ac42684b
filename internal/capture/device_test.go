package capture

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDevice(t *testing.T) {
	path := writeFile(t, "intro.webm", []byte{0x1a, 0x45, 0xdf, 0xa3})

	stream, err := FileDevice{Path: path}.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "video/webm", stream.ContentType())

	data := make([]byte, 4)
	_, err = io.ReadFull(stream, data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1a, 0x45, 0xdf, 0xa3}, data)

	// The stream stays open after the file is exhausted until released.
	require.NoError(t, stream.Close())
	n, err := stream.Read(data)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileDevice_ContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", FileDevice{Path: "a.mp4"}.contentType())
	assert.Equal(t, "video/webm", FileDevice{Path: "a.unknown"}.contentType())
	assert.Equal(t, "video/ogg", FileDevice{Path: "a.webm", ContentType: "video/ogg"}.contentType())
}

func TestFileDevice_Unavailable(t *testing.T) {
	_, err := FileDevice{Path: "/no/such/camera.webm"}.Open(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestSession_WithFileDevice(t *testing.T) {
	path := writeFile(t, "intro.webm", []byte("recorded"))
	up := &fakeUploader{}
	s := NewSession(FileDevice{Path: path}, up, WithTickInterval(0))

	require.NoError(t, s.Start(context.Background()))
	s.Tick()
	require.NoError(t, s.Stop())

	clip, ok := s.Clip()
	require.True(t, ok)
	assert.Equal(t, []byte("recorded"), clip.Data)
}

func TestFileDevice_CloseBeforeReadKeepsWholeFile(t *testing.T) {
	content := []byte("a whole prerecorded introduction")
	path := writeFile(t, "intro.webm", content)

	stream, err := FileDevice{Path: path}.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestSession_FileDeviceStoppedAtOnce(t *testing.T) {
	content := []byte("a whole prerecorded introduction")
	path := writeFile(t, "intro.webm", content)
	s := NewSession(FileDevice{Path: path}, &fakeUploader{}, WithTickInterval(0))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())

	clip, ok := s.Clip()
	require.True(t, ok)
	assert.Equal(t, content, clip.Data)
	assert.Zero(t, clip.Duration)
}
