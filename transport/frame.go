package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
)

var ErrStreamBusy = errors.New("oci: stream is already active")

// EndOfDocument is the literal byte sequence that terminates every
// document on a raw OCI TCP connection. Unlike NETCONF there is no
// chunked-framing upgrade: every document, request or response, is
// terminated the same way for the lifetime of the connection.
var EndOfDocument = []byte("</BroadsoftDocument>")

// Framer implements OCI's end-of-document framing over an arbitrary
// io.Reader/io.Writer pair. It is not a Transport on its own (it has no
// Close method) and is meant to be embedded into connection-specific
// transports such as the raw TCP one.
type Framer struct {
	r io.Reader
	w io.Writer

	br *bufio.Reader
	bw *bufio.Writer

	mu           sync.Mutex
	activeReader bool
	activeWriter bool
}

// NewFramer returns a new Framer wrapping the given io.Reader and io.Writer.
func NewFramer(r io.Reader, w io.Writer) *Framer {
	return &Framer{
		r:  r,
		w:  w,
		br: bufio.NewReader(r),
		bw: bufio.NewWriter(w),
	}
}

// DebugCapture copies all framed input/output to the given io.Writers
// for sent or received data. Either can be nil to skip capturing that
// direction. Must be called before MsgReader or MsgWriter.
func (f *Framer) DebugCapture(input, output io.Writer) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.activeReader ||
		f.activeWriter ||
		f.bw.Buffered() > 0 ||
		f.br.Buffered() > 0 {
		panic("debug capture added with active reader or writer")
	}

	if input != nil {
		f.br = bufio.NewReader(io.TeeReader(f.r, input))
	}
	if output != nil {
		f.bw = bufio.NewWriter(io.MultiWriter(f.w, output))
	}
}

func (f *Framer) closeReader() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeReader = false
}

func (f *Framer) closeWriter() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeWriter = false
}

func (f *Framer) MsgReader() (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.activeReader {
		return nil, ErrStreamBusy
	}
	f.activeReader = true

	return &markedReader{r: f.br, f: f}, nil
}

func (f *Framer) MsgWriter() (io.WriteCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.activeWriter {
		return nil, ErrStreamBusy
	}
	f.activeWriter = true

	return &markedWriter{w: f.bw, f: f}, nil
}

type markedReader struct {
	f   *Framer
	r   *bufio.Reader
	eof bool
	// pending holds the remaining bytes of a matched terminator still to
	// be handed back to the caller: the terminator is itself the closing
	// tag of the document, not an out-of-band marker, so it must reach
	// the decoder intact before signaling end of message.
	pending []byte
}

func (r *markedReader) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i++ {
		b, err := r.ReadByte()
		if err != nil {
			return i, err
		}
		p[i] = b
	}
	return len(p), nil
}

func (r *markedReader) ReadByte() (byte, error) {
	if r.r == nil {
		return 0, ErrInvalidIO
	}
	if r.eof {
		return 0, io.EOF
	}

	if len(r.pending) > 0 {
		b := r.pending[0]
		r.pending = r.pending[1:]
		if len(r.pending) == 0 {
			r.eof = true
		}
		return b, nil
	}

	b, err := r.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return b, io.ErrUnexpectedEOF
		}
		return b, err
	}

	if b == EndOfDocument[0] {
		peeked, err := r.r.Peek(len(EndOfDocument) - 1)
		if err == nil && bytes.Equal(peeked, EndOfDocument[1:]) {
			if _, err := r.r.Discard(len(EndOfDocument) - 1); err != nil {
				return 0, err
			}
			r.pending = append([]byte(nil), EndOfDocument[1:]...)
		}
	}

	return b, nil
}

func (r *markedReader) Close() error {
	if r.r == nil {
		return nil
	}
	defer func() {
		r.r = nil
		r.f.closeReader()
	}()

	if r.eof {
		return nil
	}

	var err error
	for err == nil {
		_, err = r.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
	return err
}

type markedWriter struct {
	f *Framer
	w *bufio.Writer
}

func (w *markedWriter) Write(p []byte) (int, error) {
	if w.w == nil {
		return 0, ErrInvalidIO
	}
	return w.w.Write(p)
}

func (w *markedWriter) Close() error {
	if w.w == nil {
		return nil
	}
	defer func() {
		w.w = nil
		w.f.closeWriter()
	}()

	return w.w.Flush()
}
