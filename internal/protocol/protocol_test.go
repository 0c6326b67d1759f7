package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	big := strings.Repeat("x", 64*1024+7)

	tests := []struct {
		name string
		req  Request
	}{
		{"CommandOnly", NewRequest("pwd")},
		{"OneArg", NewRequest("cd", "/var/tmp")},
		{"TwoArgs", NewRequest("get", "remote.bin", "local.bin")},
		{"EmptyArgs", NewRequest("put", "", "")},
		{"EmbeddedNUL", NewRequest("get", "a\x00b", "tail\x00")},
		{"LargeArgs", NewRequest("put", big, big+"y")},
		{"Unicode", NewRequest("cd", "répertoire/日本")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRequest(&buf, tt.req))

			got, err := ReadRequest(&buf, DefaultLimits())
			require.NoError(t, err)
			assert.Equal(t, tt.req.Command, got.Command)
			assert.Equal(t, len(tt.req.Args), len(got.Args))
			for i := range tt.req.Args {
				assert.Equal(t, []byte(tt.req.Args[i]), []byte(got.Args[i]))
			}
			assert.Zero(t, buf.Len(), "request frame must be consumed exactly")
		})
	}
}

func TestWriteRequestWireFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, NewRequest("cd", "/tmp")))

	want := []byte{
		0, 0, 0, 2,
		0, 0, 0, 3, 'c', 'd', 0,
		0, 0, 0, 5, '/', 't', 'm', 'p', 0,
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestRequestCapped(t *testing.T) {
	req := NewRequest("get", "a", "b", "c", "d", "e").Capped()

	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, req))
	assert.Equal(t, []byte{0, 0, 0, 3}, buf.Bytes()[:4])

	got, err := ReadRequest(&buf, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Args)
}

func TestReadRequestErrors(t *testing.T) {
	t.Run("ZeroCount", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader([]byte{0, 0, 0, 0}), DefaultLimits())
		assert.ErrorIs(t, err, ErrEmptyRequest)
	})

	t.Run("TruncatedArgument", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteRequest(&buf, NewRequest("cd", "/a/long/path")))
		truncated := buf.Bytes()[:buf.Len()-4]

		_, err := ReadRequest(bytes.NewReader(truncated), DefaultLimits())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProtocolDesync)

		var desync *ProtocolDesyncError
		require.True(t, errors.As(err, &desync))
		assert.Equal(t, 13, desync.Want)
		assert.Equal(t, 9, desync.Got)
	})

	t.Run("MissingArgument", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader([]byte{0, 0, 0, 2, 0, 0, 0, 1, 0}), DefaultLimits())
		assert.ErrorIs(t, err, ErrProtocolDesync)
	})

	t.Run("TooManyArguments", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader([]byte{0, 0, 1, 0}), Limits{MaxArgs: 8})
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("ArgumentTooLong", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteRequest(&buf, NewRequest("cd", strings.Repeat("a", 100))))
		_, err := ReadRequest(&buf, Limits{MaxArgLen: 16})
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("EmptyStream", func(t *testing.T) {
		_, err := ReadRequest(bytes.NewReader(nil), DefaultLimits())
		assert.ErrorIs(t, err, ErrProtocolDesync)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestZeroLengthArgument(t *testing.T) {
	// A raw zero-length argument is legal and decodes to the empty string.
	raw := []byte{0, 0, 0, 2, 0, 0, 0, 4, 'd', 'i', 'r', 0, 0, 0, 0, 0}
	req, err := ReadRequest(bytes.NewReader(raw), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, CmdDir, req.Command)
	assert.Equal(t, []string{""}, req.Args)
}

func TestTextFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, "directory changed"))
	assert.Equal(t, []byte{0, 0, 0, 18}, buf.Bytes()[:4])

	payload, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Len(t, payload, 18)
	assert.Equal(t, byte(0), payload[17])
	assert.Equal(t, "directory changed", TrimText(payload))
}

func TestBinaryFrame(t *testing.T) {
	data := []byte{0x00, 0x01, 0x00, 0xff}
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, data))
	assert.Equal(t, 8, buf.Len())

	got, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadFrameLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 32)))
	_, err := ReadFrame(&buf, 16)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestOutcome(t *testing.T) {
	for _, o := range []Outcome{OutcomeSuccess, OutcomeFailure} {
		var buf bytes.Buffer
		require.NoError(t, WriteOutcome(&buf, o))
		assert.Equal(t, []byte{0, byte(o)}, buf.Bytes())

		got, err := ReadOutcome(&buf)
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}

	_, err := ReadOutcome(bytes.NewReader([]byte{0, 7}))
	assert.Error(t, err)

	_, err = ReadOutcome(bytes.NewReader([]byte{1}))
	assert.ErrorIs(t, err, ErrProtocolDesync)
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestCopyFrameBody(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 20000)

	t.Run("Copies", func(t *testing.T) {
		var dst bytes.Buffer
		src := bytes.NewReader(data)
		n, err := CopyFrameBody(&dst, src, uint32(len(data)))
		require.NoError(t, err)
		assert.EqualValues(t, len(data), n)
		assert.Equal(t, data, dst.Bytes())
	})

	t.Run("DrainsOnWriteFailure", func(t *testing.T) {
		src := bytes.NewReader(append(append([]byte(nil), data...), 'Z'))
		n, err := CopyFrameBody(&failingWriter{after: 1}, src, uint32(len(data)))
		var sinkErr *SinkError
		require.True(t, errors.As(err, &sinkErr))
		assert.EqualError(t, sinkErr, "disk full")
		assert.EqualValues(t, 64*1024, n)

		rest, _ := io.ReadAll(src)
		assert.Equal(t, []byte("Z"), rest, "body must be consumed even when the sink fails")
	})

	t.Run("ShortSource", func(t *testing.T) {
		_, err := CopyFrameBody(io.Discard, bytes.NewReader(data[:10]), 100)
		assert.ErrorIs(t, err, ErrProtocolDesync)
		var sinkErr *SinkError
		assert.False(t, errors.As(err, &sinkErr))
	})
}

func TestCommand(t *testing.T) {
	assert.True(t, CmdGet.Known())
	assert.False(t, Command("rm").Known())
	assert.Equal(t, 1, CmdCd.MinArgs())
	assert.Equal(t, 0, CmdDir.MinArgs())
}
