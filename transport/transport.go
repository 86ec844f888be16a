// Package transport defines the message-oriented abstraction an OCI
// session talks through, decoupling its framing and handshake logic
// from how bytes actually move (TCP/TLS, or SOAP-over-HTTP).
package transport

import (
	"bytes"
	"errors"
	"io"
	"time"
)

var (
	// ErrInvalidIO is returned when a write or read operation is called on
	// a message io.Reader or a message io.Writer when they are no longer
	// valid (i.e. after it has been closed).
	ErrInvalidIO = errors.New("oci: read/write on invalid io")
)

// Transport carries one framed OCI document per MsgReader/MsgWriter
// call. Each implementation owns its own wire framing: the literal
// </BroadsoftDocument> terminator for raw TCP, or the HTTP
// request/response boundary for SOAP.
type Transport interface {
	// MsgReader returns a reader for the next message.
	// The caller must close the reader when done.
	MsgReader() (io.ReadCloser, error)

	// MsgWriter returns a writer for a new message. Closing it will finalize
	// the message framing and flush to the underlying transport.
	MsgWriter() (io.WriteCloser, error)

	Close() error
}

// Deadliner is implemented by transports whose in-flight MsgReader or
// MsgWriter call can be bounded by an absolute deadline, the way
// net.Conn.SetDeadline bounds a socket read or write. A Session uses
// this, when available, to recover from a slow peer without abandoning
// the blocked call: it returns on its own once the deadline passes,
// instead of being left running against a transport nothing will ever
// close.
type Deadliner interface {
	SetDeadline(t time.Time) error
}

// TestTransport mocks the underlying transport layer.
// It allows us to queue up "Server Responses" and inspect "Client Requests".
type TestTransport struct {
	// inputs is a queue of messages the Server "sends" to the Client.
	// The Session calls MsgReader() to pop from this queue.
	inputs [][]byte

	// outputs captures messages the Client "sends" to the Server.
	// The Session calls MsgWriter() to append to this list.
	outputs [][]byte
}

type readNoopCloser struct{ io.Reader }

func (r readNoopCloser) Close() error { return nil }

type testWriter struct {
	tt  *TestTransport
	buf *bytes.Buffer
}

func (w *testWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *testWriter) Close() error {
	w.tt.outputs = append(w.tt.outputs, w.buf.Bytes())
	return nil
}

func (t *TestTransport) MsgReader() (io.ReadCloser, error) {
	if len(t.inputs) == 0 {
		return nil, io.EOF
	}

	msg := t.inputs[0]
	t.inputs = t.inputs[1:]
	return readNoopCloser{bytes.NewReader(msg)}, nil
}

func (t *TestTransport) MsgWriter() (io.WriteCloser, error) {
	return &testWriter{tt: t, buf: &bytes.Buffer{}}, nil
}

func (t *TestTransport) Close() error { return nil }

// AddResponse pushes a server response into the read queue.
func (t *TestTransport) AddResponse(body string) {
	t.inputs = append(t.inputs, []byte(body))
}

// Outputs returns every document written so far, for test assertions.
func (t *TestTransport) Outputs() [][]byte {
	return t.outputs
}
