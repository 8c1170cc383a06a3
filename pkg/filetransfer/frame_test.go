package filetransfer_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/ocsphone/mediacall/pkg/filetransfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, filetransfer.WriteFrame(&buf, filetransfer.FrameStart, []byte("req-1")))
	require.NoError(t, filetransfer.WriteFrame(&buf, filetransfer.FrameData, []byte("hello")))
	require.NoError(t, filetransfer.WriteFrame(&buf, filetransfer.FrameEnd, []byte("req-1")))

	typ, payload, err := filetransfer.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, filetransfer.FrameStart, typ)
	assert.Equal(t, "req-1", string(payload))

	typ, payload, err = filetransfer.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, filetransfer.FrameData, typ)
	assert.Equal(t, "hello", string(payload))

	typ, payload, err = filetransfer.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, filetransfer.FrameEnd, typ)
	assert.Equal(t, "req-1", string(payload))

	_, _, err = filetransfer.ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := filetransfer.WriteFrame(&buf, filetransfer.FrameData, make([]byte, 0x10000))
	assert.Error(t, err)
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, filetransfer.WriteFrame(&buf, filetransfer.FrameData, nil))
	typ, payload, err := filetransfer.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, filetransfer.FrameData, typ)
	assert.Empty(t, payload)
}
