package server

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/berrythewa/rfs/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, limits protocol.Limits) (*Dispatcher, string) {
	t.Helper()
	root := t.TempDir()
	wd, err := NewWorkdir(root)
	require.NoError(t, err)
	return NewDispatcher(wd, &fakeLister{}, limits, nil), root
}

// putStream is a put data frame followed by a sentinel byte that must be
// left unread.
func putStream(t *testing.T, data []byte) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, protocol.WriteFrame(&buf, data))
	buf.WriteByte('!')
	return bytes.NewReader(buf.Bytes())
}

func TestDispatchPutDrainsFrame(t *testing.T) {
	d, _ := newTestDispatcher(t, protocol.Limits{})
	data := bytes.Repeat([]byte("z"), 200000)

	tests := []struct {
		name string
		req  protocol.Request
		want string
	}{
		{"NoDestination", protocol.NewRequest("put"), "cannot store file: missing argument"},
		{"OpenFailure", protocol.NewRequest("put", "missing/dir/f"), "cannot store file: "},
		{"Stored", protocol.NewRequest("put", "f"), MsgFileStored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := putStream(t, data)
			resp, err := d.Dispatch(context.Background(), tt.req, conn)
			require.NoError(t, err)
			assert.Contains(t, string(resp.Payload), tt.want)
			assert.Equal(t, 1, conn.Len(), "exactly the declared bytes are consumed")
		})
	}
}

func TestDispatchPutStoredCount(t *testing.T) {
	d, root := newTestDispatcher(t, protocol.Limits{})

	resp, err := d.Dispatch(context.Background(), protocol.NewRequest("put", "a", "b"), putStream(t, []byte("hello")))
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.EqualValues(t, 5, resp.Stored)

	info, err := os.Stat(filepath.Join(root, "b"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size())
}

func TestDispatchPutDesync(t *testing.T) {
	d, _ := newTestDispatcher(t, protocol.Limits{})

	t.Run("ShortBody", func(t *testing.T) {
		short := bytes.NewReader([]byte{0, 0, 0, 10, 'a', 'b'})
		_, err := d.Dispatch(context.Background(), protocol.NewRequest("put", "f"), short)
		assert.ErrorIs(t, err, protocol.ErrProtocolDesync)
	})

	t.Run("NoHeader", func(t *testing.T) {
		_, err := d.Dispatch(context.Background(), protocol.NewRequest("put", "f"), bytes.NewReader(nil))
		assert.ErrorIs(t, err, protocol.ErrProtocolDesync)
	})
}

func TestDispatchPutMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	d, root := newTestDispatcher(t, protocol.Limits{})

	tests := []struct {
		req  protocol.Request
		path string
		mode os.FileMode
	}{
		{protocol.NewRequest("put", "plain"), "plain", putModeDefault},
		{protocol.NewRequest("put", "ignored", "override"), "override", putModeOverride},
	}
	for _, tt := range tests {
		resp, err := d.Dispatch(context.Background(), tt.req, putStream(t, []byte("data")))
		require.NoError(t, err)
		require.True(t, resp.OK())

		info, err := os.Stat(filepath.Join(root, tt.path))
		require.NoError(t, err)
		assert.Equal(t, tt.mode, info.Mode().Perm(), tt.path)
	}
}

func TestDispatchGetTooLarge(t *testing.T) {
	prev := maxFileSize
	maxFileSize = 4
	t.Cleanup(func() { maxFileSize = prev })

	d, root := newTestDispatcher(t, protocol.Limits{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "big"), []byte("12345"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "small"), []byte("1234"), 0644))

	resp, err := d.Dispatch(context.Background(), protocol.NewRequest("get", "big"), nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeFailure, resp.Outcome)
	assert.Equal(t, "cannot read file: file too large", string(resp.Payload))

	var buf bytes.Buffer
	require.NoError(t, resp.Send(&buf))
	assert.Equal(t, []byte{0, 0}, buf.Bytes()[:2], "failure flag precedes the message")

	resp, err = d.Dispatch(context.Background(), protocol.NewRequest("get", "small"), nil)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, []byte("1234"), resp.Payload)
}

func TestDispatchPutPayloadLimit(t *testing.T) {
	d, _ := newTestDispatcher(t, protocol.Limits{MaxPayload: 4})
	_, err := d.Dispatch(context.Background(), protocol.NewRequest("put", "f"), putStream(t, []byte("too long")))
	assert.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}

func TestResponseSend(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		var buf bytes.Buffer
		r := textResponse("ok")
		require.NoError(t, r.Send(&buf))
		assert.Equal(t, []byte{0, 0, 0, 3, 'o', 'k', 0}, buf.Bytes())
		assert.Equal(t, 3, r.WireLen())
	})

	t.Run("GetFailure", func(t *testing.T) {
		d, _ := newTestDispatcher(t, protocol.Limits{})
		r, err := d.Dispatch(context.Background(), protocol.NewRequest("get", "nope"), nil)
		require.NoError(t, err)
		assert.False(t, r.OK())

		var buf bytes.Buffer
		require.NoError(t, r.Send(&buf))
		assert.Equal(t, []byte{0, 0}, buf.Bytes()[:2])
	})

	t.Run("Release", func(t *testing.T) {
		r := &Response{Payload: []byte("data")}
		r.Release()
		assert.Nil(t, r.Payload)
	})
}

func TestWorkdir(t *testing.T) {
	root := t.TempDir()
	wd, err := NewWorkdir(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "x"), wd.Resolve("x"))
	assert.Equal(t, "/etc/hosts", wd.Resolve("/etc/../etc/hosts"))

	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), nil, 0644))
	assert.Error(t, wd.Change("file"))
	assert.ErrorIs(t, wd.Change(""), os.ErrNotExist)
	assert.Equal(t, root, wd.String())

	gone := filepath.Join(root, "gone")
	require.NoError(t, os.Mkdir(gone, 0755))
	require.NoError(t, wd.Change("gone"))
	require.NoError(t, os.Remove(gone))

	_, err = wd.Get()
	assert.Error(t, err)
	assert.Equal(t, gone, wd.String())

	_, err = NewWorkdir(filepath.Join(root, "file"))
	assert.Error(t, err)
}
