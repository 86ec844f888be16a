package asyncoci

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brdwrks.dev/oci"
	"brdwrks.dev/oci/commands"
)

const xsiNS = `http://www.w3.org/2001/XMLSchema-instance`

func envelopeFixture(commandXML string) string {
	return `<?xml version="1.0" encoding="ISO-8859-1"?><BroadsoftDocument protocol="OCI" xmlns="C">` +
		`<sessionId>x</sessionId>` + commandXML + `</BroadsoftDocument>`
}

func authResponseXML() string {
	return `<command xmlns="" xmlns:C="` + xsiNS + `" C:type="AuthenticationResponse">` +
		`<nonce>abc123</nonce><passwordAlgorithm>MD5</passwordAlgorithm></command>`
}

// fakeTransport answers MsgReader from a queue of canned responses and
// blocks once the queue is empty, letting a single test transport cover
// both ordinary round trips and in-flight-cancellation scenarios.
type fakeTransport struct {
	mu      sync.Mutex
	inputs  [][]byte
	outputs [][]byte

	closed chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{closed: make(chan struct{})}
}

func (f *fakeTransport) AddResponse(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, []byte(body))
}

func (f *fakeTransport) Outputs() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs
}

func (f *fakeTransport) MsgWriter() (io.WriteCloser, error) {
	return &fakeWriter{f: f, buf: &bytes.Buffer{}}, nil
}

func (f *fakeTransport) MsgReader() (io.ReadCloser, error) {
	f.mu.Lock()
	if len(f.inputs) > 0 {
		msg := f.inputs[0]
		f.inputs = f.inputs[1:]
		f.mu.Unlock()
		return io.NopCloser(bytes.NewReader(msg)), nil
	}
	f.mu.Unlock()

	<-f.closed
	return nil, io.EOF
}

func (f *fakeTransport) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

type fakeWriter struct {
	f   *fakeTransport
	buf *bytes.Buffer
}

func (w *fakeWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fakeWriter) Close() error {
	w.f.mu.Lock()
	w.f.outputs = append(w.f.outputs, w.buf.Bytes())
	w.f.mu.Unlock()
	return nil
}

func openAuthenticated(t *testing.T, tr *fakeTransport) *oci.Session {
	t.Helper()

	tr.AddResponse(envelopeFixture(authResponseXML()))
	tr.AddResponse(envelopeFixture(`<command xmlns="" xmlns:C="` + xsiNS + `" C:type="LoginResponse22V5"></command>`))

	s, err := oci.Open(context.Background(), tr, "admin", "hunter2", oci.WithTLS(true))
	require.NoError(t, err)
	return s
}

func TestBridgeCommandRoundTrips(t *testing.T) {
	tr := newFakeTransport()
	s := openAuthenticated(t, tr)
	b := NewBridge(s)
	defer b.Close()

	tr.AddResponse(envelopeFixture(`<command xmlns="" xmlns:C="` + xsiNS + `" C:type="UserGetRegistrationListResponse22">` +
		`<userId>alice@example.com</userId><registrationTable>` +
		`<colHeading>deviceName</colHeading><row><col>deskphone1</col></row>` +
		`</registrationTable></command>`))

	resp, err := b.Command(context.Background(), &commands.UserGetRegistrationListRequest22{UserID: "alice@example.com"})
	require.NoError(t, err)

	got, ok := resp.(*commands.UserGetRegistrationListResponse22)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", got.UserID)
}

func TestBridgeRawCommandRoundTrips(t *testing.T) {
	tr := newFakeTransport()
	s := openAuthenticated(t, tr)
	b := NewBridge(s)
	defer b.Close()

	tr.AddResponse(envelopeFixture(`<command xmlns="" xmlns:C="` + xsiNS + `" C:type="SuccessResponse"></command>`))

	resp, err := b.RawCommand(context.Background(), "UserGetRegistrationListRequest22", map[string]any{
		"userId": "alice@example.com",
	})
	require.NoError(t, err)
	assert.IsType(t, &commands.SuccessResponse{}, resp)
}

func TestBridgeSerializesConcurrentDispatches(t *testing.T) {
	tr := newFakeTransport()
	s := openAuthenticated(t, tr)
	b := NewBridge(s)
	defer b.Close()

	for range 5 {
		tr.AddResponse(envelopeFixture(`<command xmlns="" xmlns:C="` + xsiNS + `" C:type="SuccessResponse"></command>`))
	}

	results := make(chan error, 5)
	for range 5 {
		go func() {
			_, err := b.RawCommand(context.Background(), "UserGetRegistrationListRequest22", map[string]any{
				"userId": "alice@example.com",
			})
			results <- err
		}()
	}
	for range 5 {
		assert.NoError(t, <-results)
	}
}

func TestBridgeInFlightCancelDeauthenticatesSession(t *testing.T) {
	tr := newFakeTransport()
	s := openAuthenticated(t, tr)
	b := NewBridge(s)
	defer b.Close()

	// No response queued: the Command call below blocks in recv until
	// ctx is cancelled out from under it.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := b.Command(ctx, &commands.UserGetRegistrationListRequest22{UserID: "alice@example.com"})
	require.Error(t, err)

	var ociErr *oci.Error
	require.True(t, errors.As(err, &ociErr))
	assert.Equal(t, oci.Cancelled, ociErr.Kind)
	assert.False(t, s.Authenticated())
}

func TestBridgeQueuedCancelIsNoOp(t *testing.T) {
	tr := newFakeTransport()
	s := openAuthenticated(t, tr)
	b := NewBridge(s)
	defer b.Close()

	// Occupy every codec-offload slot directly so the dispatch below is
	// guaranteed to be waiting for one, not yet handed to the session.
	holdCtx, holdCancel := context.WithCancel(context.Background())
	defer holdCancel()
	started := make(chan struct{})
	go func() {
		for range maxCodecWorkers {
			b.codecSem <- struct{}{}
		}
		close(started)
		<-holdCtx.Done()
		for range maxCodecWorkers {
			<-b.codecSem
		}
	}()
	<-started

	queuedCtx, queuedCancel := context.WithCancel(context.Background())
	queuedCancel()

	_, err := b.Command(queuedCtx, &commands.UserGetRegistrationListRequest22{UserID: "alice@example.com"})
	require.Error(t, err)

	var ociErr *oci.Error
	require.True(t, errors.As(err, &ociErr))
	assert.Equal(t, oci.Cancelled, ociErr.Kind)

	holdCancel()
	// The no-op cancellation never touched the session itself.
	assert.True(t, s.Authenticated())
}
