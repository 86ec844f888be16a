// Package tcp implements OCI's raw socket transport: a single
// long-lived TCP connection, optionally wrapped in TLS, framed with the
// literal </BroadsoftDocument> terminator.
package tcp

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"brdwrks.dev/oci/transport"
)

// alias it to a private type so we can keep it unexported when embedded.
type framer = transport.Framer

// Transport is a raw OCI connection, plain or TLS.
type Transport struct {
	conn net.Conn
	*framer
}

// Dial connects to addr (network is normally "tcp") and returns a new
// Transport. If config is non-nil the connection is upgraded to TLS
// before any documents are exchanged; when config.ServerName is empty,
// Dial sets it on a clone of config to the host part of addr.
func Dial(ctx context.Context, network, addr string, config *tls.Config) (*Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if config == nil {
		return NewTransport(conn), nil
	}

	cfg := config
	if cfg.ServerName == "" {
		host, _, splitErr := net.SplitHostPort(addr)
		if splitErr == nil {
			cfg = config.Clone()
			cfg.ServerName = host
		}
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = tlsConn.Close()
		return nil, err
	}
	return NewTransport(tlsConn), nil
}

// NewTransport wraps an already-connected net.Conn (plain or *tls.Conn)
// in OCI framing.
func NewTransport(conn net.Conn) *Transport {
	return &Transport{
		conn:   conn,
		framer: transport.NewFramer(conn, conn),
	}
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// SetDeadline sets the read and write deadline on the underlying
// connection, satisfying transport.Deadliner.
func (t *Transport) SetDeadline(deadline time.Time) error {
	return t.conn.SetDeadline(deadline)
}

var _ transport.Deadliner = (*Transport)(nil)
