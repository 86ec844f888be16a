// Package asyncoci adapts a blocking *oci.Session onto a single
// dispatch-loop goroutine, suspending callers at two points: waiting
// for one of a bounded number of dispatch slots, and waiting for the
// loop to run the session call (encode, send/recv round trip, decode).
package asyncoci

import (
	"context"
	"errors"
	"sync"

	"brdwrks.dev/oci"
)

// maxCodecWorkers bounds how many dispatches may hold a slot at once; a
// slot is held from acquisition until the dispatch returns. Encoding
// and decoding are not done in the slot itself: they run inside the
// session call on the loop goroutine, which is serialized
// one-in-flight-at-a-time (the protocol has no message-id correlation
// to multiplex on).
const maxCodecWorkers = 4

// ErrClosed is returned by a dispatch submitted after Close.
var ErrClosed = errors.New("asyncoci: bridge is closed")

type job struct {
	run  func() (any, error)
	resp chan jobResult
}

type jobResult struct {
	v   any
	err error
}

// Bridge wraps an *oci.Session so that Command/RawCommand calls
// suspend at well-defined boundaries rather than blocking the calling
// goroutine for the whole round trip. A Bridge owns exactly one
// Session: closing the Bridge closes it.
type Bridge struct {
	sess *oci.Session

	codecSem chan struct{}
	submit   chan *job

	closeOnce sync.Once
	done      chan struct{}
}

// NewBridge starts the Bridge's dispatch loop over sess.
func NewBridge(sess *oci.Session) *Bridge {
	b := &Bridge{
		sess:     sess,
		codecSem: make(chan struct{}, maxCodecWorkers),
		submit:   make(chan *job),
		done:     make(chan struct{}),
	}
	go b.loop()
	return b
}

// loop is the single goroutine that actually runs dispatches, giving
// the session's one-in-flight-command invariant a concrete home: only
// one job is ever being run() at a time.
func (b *Bridge) loop() {
	for {
		select {
		case j := <-b.submit:
			v, err := j.run()
			select {
			case j.resp <- jobResult{v, err}:
			default:
			}
		case <-b.done:
			return
		}
	}
}

// Command dispatches req exactly as (*oci.Session).Command would,
// through the bounded codec-offload pool and the session's FIFO queue.
func (b *Bridge) Command(ctx context.Context, req any) (any, error) {
	return b.dispatch(ctx, func() (any, error) {
		return b.sess.Command(ctx, req)
	})
}

// RawCommand dispatches a typeTag/fields pair exactly as
// (*oci.Session).RawCommand would.
func (b *Bridge) RawCommand(ctx context.Context, typeTag string, fields map[string]any) (any, error) {
	return b.dispatch(ctx, func() (any, error) {
		return b.sess.RawCommand(ctx, typeTag, fields)
	})
}

// dispatch carries fn through three suspension points: acquiring a
// codec-offload slot, handing fn to the single dispatch loop, and
// waiting for its result. Cancelling ctx while fn is still waiting for
// either slot is a no-op: fn never ran and the session is untouched.
// Cancelling once the loop goroutine has taken ownership of fn closes
// the transport and deauthenticates the session, the same outcome an
// abrupt disconnect would produce; the caller sees Kind Cancelled in
// both cases, distinguished only by whether the session is still
// usable afterward.
func (b *Bridge) dispatch(ctx context.Context, fn func() (any, error)) (any, error) {
	select {
	case b.codecSem <- struct{}{}:
		defer func() { <-b.codecSem }()
	case <-ctx.Done():
		return nil, &oci.Error{Kind: oci.Cancelled, Cause: ctx.Err()}
	case <-b.done:
		return nil, &oci.Error{Kind: oci.Cancelled, Cause: ErrClosed}
	}

	j := &job{run: fn, resp: make(chan jobResult, 1)}

	select {
	case b.submit <- j:
		// fn is now owned by the loop goroutine: any cancellation from
		// here on is an in-flight cancellation.
	case <-ctx.Done():
		return nil, &oci.Error{Kind: oci.Cancelled, Cause: ctx.Err()}
	case <-b.done:
		return nil, &oci.Error{Kind: oci.Cancelled, Cause: ErrClosed}
	}

	select {
	case r := <-j.resp:
		return r.v, r.err
	case <-ctx.Done():
		_ = b.sess.Close()
		return nil, &oci.Error{Kind: oci.Cancelled, Cause: ctx.Err()}
	}
}

// Close stops the dispatch loop and closes the underlying session.
// Safe to call more than once; dispatches still waiting for a slot or
// for the loop to accept them at the time of Close unblock with Kind
// Cancelled, while a dispatch the loop is already running returns
// whatever its session call returns once the session is closed.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return b.sess.Close()
}
