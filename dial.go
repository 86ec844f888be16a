package oci

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"

	"brdwrks.dev/oci/transport/soap"
	"brdwrks.dev/oci/transport/tcp"
	sshtunnel "brdwrks.dev/oci/transport/ssh"
)

// Dial connects to host:port (port defaults to DefaultPort when 0),
// optionally upgrading to TLS when tlsConfig is non-nil, and performs
// the authentication handshake. It is a convenience wrapper around
// transport/tcp.Dial and Open.
func Dial(ctx context.Context, host string, port int, userID, password string, tlsConfig *tls.Config, opts ...SessionOption) (*Session, error) {
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	cfg := sessionConfig{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	tr, err := tcp.Dial(dialCtx, "tcp", addr, tlsConfig)
	if isTimeout(err) {
		return nil, newError(Timeout, err)
	}
	if err != nil {
		return nil, newError(SocketInit, err)
	}

	allOpts := append([]SessionOption{WithTLS(tlsConfig != nil)}, opts...)
	s, err := Open(ctx, tr, userID, password, allOpts...)
	if err != nil {
		return nil, err
	}
	s.host, s.port = host, port
	return s, nil
}

// DialSSHTunnel reaches host:port through an already-connected SSH
// jump host instead of a direct TCP dial, for OCI deployments only
// reachable via a bastion. tunnel is typically obtained from
// transport/ssh.Dial.
func DialSSHTunnel(ctx context.Context, tunnel *sshtunnel.Tunnel, host string, port int, userID, password string, tlsConfig *tls.Config, opts ...SessionOption) (*Session, error) {
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := tunnel.DialForward("tcp", addr)
	if err != nil {
		return nil, newError(SocketInit, err)
	}

	tr, err := upgradeTLS(ctx, conn, tlsConfig, host)
	if err != nil {
		return nil, newError(SocketInit, err)
	}

	allOpts := append([]SessionOption{WithTLS(tlsConfig != nil)}, opts...)
	s, err := Open(ctx, tr, userID, password, allOpts...)
	if err != nil {
		return nil, err
	}
	s.host, s.port = host, port
	return s, nil
}

// DialSOAP performs the authentication handshake over a SOAP-over-HTTP
// binding instead of the raw TCP framing, POSTing every document to
// url. client may be nil to use http.DefaultClient; TLS, if any, is
// whatever url's scheme and client's transport already provide.
func DialSOAP(ctx context.Context, url string, client *http.Client, userID, password string, opts ...SessionOption) (*Session, error) {
	tr := soap.NewTransport(url, client)
	return Open(ctx, tr, userID, password, opts...)
}

func upgradeTLS(ctx context.Context, conn net.Conn, config *tls.Config, host string) (*tcp.Transport, error) {
	if config == nil {
		return tcp.NewTransport(conn), nil
	}

	cfg := config
	if cfg.ServerName == "" {
		cfg = config.Clone()
		cfg.ServerName = host
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = tlsConn.Close()
		return nil, err
	}
	return tcp.NewTransport(tlsConn), nil
}
