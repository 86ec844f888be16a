// Package ssh dials an OCI endpoint through an SSH jump host: the
// client authenticates to the bastion, then asks it to open a direct
// TCP channel to the real OCI host and port, producing a net.Conn
// indistinguishable (to the caller) from one returned by net.Dial.
package ssh

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/crypto/ssh"
)

// Tunnel is an established SSH connection to a jump host, capable of
// opening any number of forwarded TCP connections through it.
type Tunnel struct {
	client *ssh.Client
}

// Dial connects and authenticates to the jump host at addr.
func Dial(ctx context.Context, network, addr string, config *ssh.ClientConfig) (*Tunnel, error) {
	d := net.Dialer{Timeout: config.Timeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("ssh: dialing jump host %s: %w", addr, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ssh: handshake with jump host %s: %w", addr, err)
	}

	return &Tunnel{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// NewTunnel wraps an already-established ssh.Client.
func NewTunnel(client *ssh.Client) *Tunnel {
	return &Tunnel{client: client}
}

// DialForward opens a direct-tcpip channel through the tunnel to
// network/addr (normally the OCI device's host:port), returning a
// net.Conn the caller can hand to transport/tcp.NewTransport exactly as
// it would a conn from net.Dial.
func (t *Tunnel) DialForward(network, addr string) (net.Conn, error) {
	conn, err := t.client.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("ssh: forwarding to %s: %w", addr, err)
	}
	return conn, nil
}

// Close closes the jump host connection and every channel forwarded
// through it.
func (t *Tunnel) Close() error {
	return t.client.Close()
}
