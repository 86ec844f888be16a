package oci

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialConnectionRefusedReportsSocketInit(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), "localhost", addr.Port, "admin", "hunter2", nil)
	require.Error(t, err)

	var ociErr *Error
	require.True(t, errors.As(err, &ociErr))
	assert.Equal(t, SocketInit, ociErr.Kind)
}

// TestDialSOAPPerformsHandshakeOverHTTP exercises the full Session
// dispatch path through soap.Transport: unlike transport/soap's own
// tests, which write a bare <command> fragment directly to a
// soap.Transport, this dials through Session.dispatch so that a
// regression in the raw-TCP-vs-SOAP framing split (rawFraming) would
// surface here. The command bodies below are deliberately NOT wrapped
// in a BroadsoftDocument envelope and carry no XML declaration of
// their own: dispatch must hand SOAP the bare command and expect the
// bare command back, never routing it through the ISO-8859-1 envelope
// used for raw TCP.
func TestDialSOAPPerformsHandshakeOverHTTP(t *testing.T) {
	responses := []string{
		`<command xmlns="" xmlns:C="` + xsiNS + `" C:type="AuthenticationResponse">` +
			`<nonce>abc123</nonce><passwordAlgorithm>MD5</passwordAlgorithm></command>`,
		`<command xmlns="" xmlns:C="` + xsiNS + `" C:type="LoginResponse22V5"></command>`,
	}
	var gotBodies []string
	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBodies = append(gotBodies, string(body))
		idx := calls
		calls++

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = w.Write([]byte(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">` +
			`<soapenv:Body>` + responses[idx] + `</soapenv:Body></soapenv:Envelope>`))
	}))
	defer srv.Close()

	s, err := DialSOAP(context.Background(), srv.URL, srv.Client(), "admin", "hunter2", WithTLS(true))
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
	assert.Equal(t, 2, calls)

	for _, b := range gotBodies {
		assert.NotContains(t, b, "BroadsoftDocument", "SOAP requests must not carry the raw-TCP envelope")
		assert.Equal(t, 1, strings.Count(b, `<?xml`), "SOAP requests must not nest a second XML declaration inside the envelope")
	}
}

func TestDialDefaultsPortWhenZero(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), "127.0.0.1", 0, "admin", "hunter2", nil)
	require.Error(t, err)
	// Only asserting that a zero port doesn't panic before reaching the
	// network: DefaultPort (2209) is very unlikely to be listening.
}
