// Package oci implements a client for the Broadworks/OCI telephony
// provisioning protocol: the nonce/MD5 authentication handshake, framed
// XML request/response dispatch over a raw TCP or SOAP-over-HTTP
// transport, and the raw_command escape hatch for wire types the
// caller's Go program has no struct for.
package oci

import (
	"context"
	"crypto/md5"  //nolint:gosec // OCI's handshake mandates MD5, not a choice this client makes
	"crypto/sha1" //nolint:gosec // ditto
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"brdwrks.dev/oci/codec"
	"brdwrks.dev/oci/commands"
	"brdwrks.dev/oci/naming"
	"brdwrks.dev/oci/registry"
	"brdwrks.dev/oci/transport"
	"brdwrks.dev/oci/transport/soap"
)

const (
	// DefaultPort is the TCP port OCI devices and application servers
	// listen on.
	DefaultPort = 2209
	// DefaultUserAgent identifies this client in diagnostic contexts
	// that record one.
	DefaultUserAgent = "Broadworks SDK"
	// DefaultTimeout bounds every send and receive, and the connect
	// Dial performs.
	DefaultTimeout = 30 * time.Second
)

type sessionConfig struct {
	userAgent string
	timeout   time.Duration
	tls       bool
	logger    *slog.Logger
	registry  *registry.Registry
}

// SessionOption configures a Session at Open time.
type SessionOption interface {
	apply(*sessionConfig)
}

type userAgentOpt string

func (o userAgentOpt) apply(c *sessionConfig) { c.userAgent = string(o) }

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) SessionOption { return userAgentOpt(ua) }

type timeoutOpt time.Duration

func (o timeoutOpt) apply(c *sessionConfig) { c.timeout = time.Duration(o) }

// WithTimeout overrides DefaultTimeout for every send and receive this
// Session performs, and for the connect Dial performs.
func WithTimeout(d time.Duration) SessionOption { return timeoutOpt(d) }

type tlsOpt bool

func (o tlsOpt) apply(c *sessionConfig) { c.tls = bool(o) }

// WithTLS records whether the transport passed to Open is TLS
// protected, selecting LoginRequest22V5 (true, the default assumption)
// or LoginRequest14sp4 (false) for the handshake's second step.
func WithTLS(enabled bool) SessionOption { return tlsOpt(enabled) }

type loggerOpt struct{ l *slog.Logger }

func (o loggerOpt) apply(c *sessionConfig) { c.logger = o.l }

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) SessionOption { return loggerOpt{l} }

type registryOpt struct{ r *registry.Registry }

func (o registryOpt) apply(c *sessionConfig) { c.registry = o.r }

// WithRegistry overrides the default commands.Default() registry,
// letting a caller dispatch only its own descriptors or a superset of
// the built-in catalog.
func WithRegistry(r *registry.Registry) SessionOption { return registryOpt{r} }

// Session is one authenticated OCI connection. A Session serializes
// its own command dispatch: concurrent callers of Command/RawCommand
// block on each other rather than racing the transport.
type Session struct {
	tr         transport.Transport
	reg        *registry.Registry
	log        *slog.Logger
	host       string
	port       int
	userAgent  string
	timeout    time.Duration
	tlsEnabled bool

	dispatchMu sync.Mutex

	stateMu       sync.Mutex
	sessionID     string
	authenticated bool
	closed        bool
}

// Open performs the OCI authentication handshake over tr and, on
// success, returns a ready-to-use Session. On any failure tr is
// closed and the error returned.
func Open(ctx context.Context, tr transport.Transport, userID, password string, opts ...SessionOption) (*Session, error) {
	cfg := sessionConfig{
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		tls:       true,
		logger:    slog.Default(),
		registry:  commands.Default(),
	}
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		_ = tr.Close()
		return nil, newError(ClientInit, fmt.Errorf("generating session id: %w", err))
	}

	s := &Session{
		tr:         tr,
		reg:        cfg.registry,
		log:        cfg.logger,
		userAgent:  cfg.userAgent,
		timeout:    cfg.timeout,
		tlsEnabled: cfg.tls,
		sessionID:  id.String(),
	}

	if err := s.handshake(ctx, userID, password); err != nil {
		_ = tr.Close()
		return nil, err
	}

	s.log.Debug("oci: session authenticated", "session_id", s.sessionID, "user_id", userID)
	return s, nil
}

func signPassword(nonce, password string) string {
	shaSum := sha1.Sum([]byte(password))
	shaHex := hex.EncodeToString(shaSum[:])
	md5Sum := md5.Sum([]byte(nonce + ":" + shaHex))
	return hex.EncodeToString(md5Sum[:])
}

func (s *Session) handshake(ctx context.Context, userID, password string) error {
	var authResp commands.AuthenticationResponse
	if err := s.exchange(ctx, &commands.AuthenticationRequest{UserID: userID}, &authResp); err != nil {
		return err
	}
	if authResp.PasswordAlgorithm != "MD5" {
		return newError(AuthFailed, fmt.Errorf("unsupported password algorithm %q", authResp.PasswordAlgorithm))
	}

	signedPassword := signPassword(authResp.Nonce, password)

	if s.tlsEnabled {
		var loginResp commands.LoginResponse22V5
		req := &commands.LoginRequest22V5{UserID: userID, SignedPassword: signedPassword}
		if err := s.exchange(ctx, req, &loginResp); err != nil {
			return err
		}
	} else {
		var loginResp commands.LoginResponse14sp4
		req := &commands.LoginRequest14sp4{UserID: userID, SignedPassword: signedPassword}
		if err := s.exchange(ctx, req, &loginResp); err != nil {
			return err
		}
	}

	s.stateMu.Lock()
	s.authenticated = true
	s.stateMu.Unlock()
	return nil
}

// exchange dispatches req (bypassing the authenticated check, since the
// handshake itself is unauthenticated) and copies the decoded response
// into target, which must be a pointer to the expected response type.
// Any ErrorResponse, or a response of a different type, is reported as
// AuthFailed; transport-level failures pass through unchanged.
func (s *Session) exchange(ctx context.Context, req, target any) error {
	entity, err := s.dispatch(ctx, req, true)
	if err != nil {
		var ociErr *Error
		if errors.As(err, &ociErr) && ociErr.Kind == ResponseError {
			return newError(AuthFailed, err)
		}
		return err
	}

	rv := reflect.ValueOf(entity)
	tv := reflect.ValueOf(target)
	if rv.Type() != tv.Type() {
		return newError(AuthFailed, fmt.Errorf("expected %s, got %s", tv.Type().Elem(), rv.Type().Elem()))
	}
	tv.Elem().Set(rv.Elem())
	return nil
}

// Command dispatches req (a pointer to a registered entity type) and
// returns the decoded response: the entity on a data response, a
// *commands.SuccessResponse when the command succeeded without one, or
// a *Error with Kind ResponseError when the server reported a failure.
func (s *Session) Command(ctx context.Context, req any) (any, error) {
	return s.dispatch(ctx, req, false)
}

// RawCommand dispatches a command identified only by its wire type tag
// and a dict of field values, for callers with no generated Go type for
// it. Fields absent from the resolved descriptor fail with Kind
// UnknownField before anything is sent.
func (s *Session) RawCommand(ctx context.Context, typeTag string, fields map[string]any) (any, error) {
	d, err := s.reg.ByTag(typeTag)
	if err != nil {
		return nil, newError(UnknownCommand, err)
	}
	if err := checkUnknownFields(d, fields); err != nil {
		return nil, err
	}

	entity, err := codec.FromDict(s.reg, map[string]any{"command": fields}, typeTag)
	if err != nil {
		return nil, newError(Unknown, err)
	}

	return s.dispatch(ctx, entity, false)
}

func checkUnknownFields(d *registry.Descriptor, fields map[string]any) error {
	known := make(map[string]struct{}, len(d.Fields)*2)
	for _, f := range d.Fields {
		known[f.WireName] = struct{}{}
		known[naming.ToSnake(f.WireName)] = struct{}{}
	}
	for k := range fields {
		if _, ok := known[k]; !ok {
			return newError(UnknownField, fmt.Errorf("%q is not a field of %s", k, d.Tag))
		}
	}
	return nil
}

// dispatch implements the Dispatcher: encode, frame, send, receive,
// decode, classify. skipAuthCheck allows the handshake's own commands
// through before the session is marked authenticated.
func (s *Session) dispatch(ctx context.Context, req any, skipAuthCheck bool) (any, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.stateMu.Lock()
	authenticated := s.authenticated
	sessionID := s.sessionID
	s.stateMu.Unlock()

	if !authenticated && !skipAuthCheck {
		return nil, newError(AuthFailed, errors.New("session is not authenticated"))
	}

	body, err := codec.Encode(s.reg, req)
	if err != nil {
		var unknown *registry.ErrUnknownCommand
		if errors.As(err, &unknown) {
			return nil, newError(UnknownCommand, err)
		}
		return nil, newError(Unknown, err)
	}

	outgoing := body
	if s.rawFraming() {
		outgoing, err = encodeEnvelope(sessionID, body)
		if err != nil {
			return nil, newError(Unknown, err)
		}
	}

	if err := s.send(ctx, outgoing); err != nil {
		return nil, err
	}

	raw, err := s.recv(ctx)
	if err != nil {
		return nil, err
	}

	commandBody := raw
	if s.rawFraming() {
		commandBody, err = decodeEnvelope(raw)
		if err != nil {
			return nil, newError(MalformedWire, err)
		}
	}

	entity, err := codec.Decode(s.reg, commandBody, nil)
	if err != nil {
		var unknown *registry.ErrUnknownCommand
		if errors.As(err, &unknown) {
			return nil, newError(UnknownCommand, err)
		}
		return nil, newError(MalformedWire, err)
	}

	return s.classify(entity)
}

// rawFraming reports whether this Session must supply its own document
// envelope (the ISO-8859-1 BroadsoftDocument wrapper carrying
// sessionId, used by the raw TCP and SSH-tunneled transports) rather
// than the bare <command> body. SOAP needs no such wrapper: one HTTP
// request/response pair already is one document, and the transport's
// own Content-Type header, not a leading XML declaration, states its
// charset.
func (s *Session) rawFraming() bool {
	_, isSOAP := s.tr.(*soap.Transport)
	return !isSOAP
}

func (s *Session) classify(entity any) (any, error) {
	d, err := s.reg.ByValue(entity)
	if err != nil {
		return nil, newError(Unknown, err)
	}
	if d.Kind != registry.KindErrorResponse {
		return entity, nil
	}

	errResp, ok := entity.(*commands.ErrorResponse)
	if !ok {
		return nil, newError(Unknown, fmt.Errorf("error response has unexpected type %T", entity))
	}
	return nil, &Error{
		Kind:    ResponseError,
		Summary: errResp.Summary,
		Detail:  errResp.Detail,
		Cause:   fmt.Errorf("%s: %s", errResp.Summary, errResp.Detail),
	}
}

func (s *Session) send(ctx context.Context, envelope []byte) error {
	_, err := withTimeout(ctx, s.tr, s.timeout, func() (struct{}, error) {
		w, err := s.tr.MsgWriter()
		if err != nil {
			return struct{}{}, err
		}
		if _, err := w.Write(envelope); err != nil {
			_ = w.Close()
			return struct{}{}, err
		}
		return struct{}{}, w.Close()
	})
	if isTimeout(err) {
		return newError(Timeout, err)
	}
	if err != nil {
		return newError(SendFailed, err)
	}
	return nil
}

func (s *Session) recv(ctx context.Context) ([]byte, error) {
	raw, err := withTimeout(ctx, s.tr, s.timeout, func() ([]byte, error) {
		r, err := s.tr.MsgReader()
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	})
	if isTimeout(err) {
		return nil, newError(Timeout, err)
	}
	if err != nil {
		return nil, newError(Unknown, err)
	}
	return raw, nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}

// withTimeout bounds fn by timeout (and ctx's own deadline, if
// earlier). When tr implements transport.Deadliner, the bound is
// enforced by setting a deadline on tr before running fn directly: fn's
// blocking transport call returns on its own once the deadline passes,
// so the transport stays usable for the next command, exactly as
// net.Conn behaves after a read or write deadline expires.
//
// Otherwise fn runs in a goroutine raced against ctx, and a timeout
// returns ctx.Err() without waiting for fn: fn's underlying blocking
// call is left running against a transport nothing will ever close,
// which is why every transport that can reasonably support deadlines
// (tcp.Transport) does.
func withTimeout[T any](ctx context.Context, tr transport.Transport, timeout time.Duration, fn func() (T, error)) (T, error) {
	if d, ok := tr.(transport.Deadliner); ok {
		deadline := time.Now().Add(timeout)
		if ctxDeadline, hasDeadline := ctx.Deadline(); hasDeadline && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		if err := d.SetDeadline(deadline); err != nil {
			var zero T
			return zero, err
		}
		defer d.SetDeadline(time.Time{}) //nolint:errcheck // best-effort clear; a still-broken deadline surfaces on the next call's SetDeadline

		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// SessionID returns the client-generated session identifier sent on
// every envelope.
func (s *Session) SessionID() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.sessionID
}

// Host returns the host this Session was dialed to, or "" if it was
// constructed from a caller-supplied transport via Open rather than
// Dial or DialSSHTunnel.
func (s *Session) Host() string { return s.host }

// Port returns the port this Session was dialed to, or 0 if it was
// constructed from a caller-supplied transport via Open rather than
// Dial or DialSSHTunnel.
func (s *Session) Port() int { return s.port }

// UserAgent returns the value this Session was configured with via
// WithUserAgent, or DefaultUserAgent.
func (s *Session) UserAgent() string { return s.userAgent }

// Authenticated reports whether the handshake has completed and Close
// has not yet been called.
func (s *Session) Authenticated() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.authenticated
}

// Close idempotently tears down the session: it marks the session
// unauthenticated, blanks the session id, and closes the underlying
// transport. Calling Close more than once is safe; only the first
// call's transport error (if any) is returned.
func (s *Session) Close() error {
	s.stateMu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.authenticated = false
	s.sessionID = ""
	s.stateMu.Unlock()

	if alreadyClosed {
		return nil
	}

	if err := s.tr.Close(); err != nil &&
		!errors.Is(err, net.ErrClosed) &&
		!errors.Is(err, io.EOF) {
		return newError(Unknown, err)
	}
	return nil
}
