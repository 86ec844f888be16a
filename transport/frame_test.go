package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleDoc = []byte(`<BroadsoftDocument protocol="OCI" xmlns="C"><sessionId>abc</sessionId><command xmlns="" xmlns:C="http://www.w3.org/2001/XMLSchema-instance" C:type="AuthenticationRequest"><userId>admin</userId></command></BroadsoftDocument>`)

func TestFramerReadsOneDocumentAndStops(t *testing.T) {
	f := NewFramer(bytes.NewReader(sampleDoc), io.Discard)

	r, err := f.MsgReader()
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, got)
	require.NoError(t, r.Close())
}

func TestFramerReadsConsecutiveDocuments(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(sampleDoc)
	buf.Write(sampleDoc)

	f := NewFramer(&buf, io.Discard)

	for i := 0; i < 2; i++ {
		r, err := f.MsgReader()
		require.NoError(t, err)

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, sampleDoc, got)
		require.NoError(t, r.Close())
	}
}

func TestFramerMsgReaderBusyUntilClosed(t *testing.T) {
	f := NewFramer(bytes.NewReader(sampleDoc), io.Discard)

	r, err := f.MsgReader()
	require.NoError(t, err)

	_, err = f.MsgReader()
	assert.ErrorIs(t, err, ErrStreamBusy)

	require.NoError(t, r.Close())

	r, err = f.MsgReader()
	require.NoError(t, err)
	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFramerCloseWithoutReadingDrainsToTerminator(t *testing.T) {
	f := NewFramer(bytes.NewReader(sampleDoc), io.Discard)

	r, err := f.MsgReader()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	w, err := f.MsgWriter()
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestFramerWriterFlushesExactBytes(t *testing.T) {
	var out bytes.Buffer
	f := NewFramer(bytes.NewReader(nil), &out)

	w, err := f.MsgWriter()
	require.NoError(t, err)
	_, err = w.Write(sampleDoc)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, sampleDoc, out.Bytes())
}

func TestFramerMsgWriterBusyUntilClosed(t *testing.T) {
	var out bytes.Buffer
	f := NewFramer(bytes.NewReader(nil), &out)

	w, err := f.MsgWriter()
	require.NoError(t, err)

	_, err = f.MsgWriter()
	assert.ErrorIs(t, err, ErrStreamBusy)

	require.NoError(t, w.Close())

	_, err = f.MsgWriter()
	assert.NoError(t, err)
}

func TestMarkedReaderInvalidAfterClose(t *testing.T) {
	f := NewFramer(bytes.NewReader(sampleDoc), io.Discard)
	r, err := f.MsgReader()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrInvalidIO)
}
