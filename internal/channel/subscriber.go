// Package channel provides the CURVE-encrypted ZeroMQ transport for sweep frames.
package channel

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// KeySize is the length of a raw CURVE key
const KeySize = 32

// ErrClosed is returned by NextMessage after Close
var ErrClosed = errors.New("channel: closed")

// Options tune the underlying socket
type Options struct {
	// ReconnectInterval is how long libzmq waits before redialing a lost peer.
	ReconnectInterval time.Duration
	// ReceiveHighWaterMark bounds frames queued in the socket. Zero keeps the libzmq default.
	ReceiveHighWaterMark int
}

// Subscriber is a subscribe-only CURVE session. It is not safe for
// concurrent use; one goroutine polls and closes it.
type Subscriber struct {
	ctx      *zmq.Context
	sock     *zmq.Socket
	poller   *zmq.Poller
	endpoint string

	closeOnce sync.Once
	closed    bool
}

// Open connects to a CURVE publisher. The local keypair authenticates this
// side; remotePublic pins the publisher's identity. Connection failures after
// this point are handled by libzmq and only show up as poll timeouts.
func Open(endpoint string, localPublic, localSecret, remotePublic []byte, opts Options) (*Subscriber, error) {
	if err := checkKey("local public", localPublic); err != nil {
		return nil, err
	}
	if err := checkKey("local secret", localSecret); err != nil {
		return nil, err
	}
	if err := checkKey("remote public", remotePublic); err != nil {
		return nil, err
	}
	if !zmq.HasCurve() {
		return nil, errors.New("channel: libzmq was built without CURVE support")
	}

	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create zmq context: %w", err)
	}

	sock, err := ctx.NewSocket(zmq.SUB)
	if err != nil {
		ctx.Term()
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	setup := []func() error{
		func() error { return sock.SetLinger(0) },
		func() error { return sock.SetCurveServerkey(zmq.Z85encode(string(remotePublic))) },
		func() error { return sock.SetCurvePublickey(zmq.Z85encode(string(localPublic))) },
		func() error { return sock.SetCurveSecretkey(zmq.Z85encode(string(localSecret))) },
		func() error { return sock.SetSubscribe("") },
	}
	if opts.ReconnectInterval > 0 {
		setup = append(setup, func() error { return sock.SetReconnectIvl(opts.ReconnectInterval) })
	}
	if opts.ReceiveHighWaterMark > 0 {
		setup = append(setup, func() error { return sock.SetRcvhwm(opts.ReceiveHighWaterMark) })
	}
	setup = append(setup, func() error { return sock.Connect(endpoint) })

	for _, step := range setup {
		if err := step(); err != nil {
			sock.Close()
			ctx.Term()
			return nil, fmt.Errorf("failed to set up subscriber for %s: %w", endpoint, err)
		}
	}

	poller := zmq.NewPoller()
	poller.Add(sock, zmq.POLLIN)

	return &Subscriber{
		ctx:      ctx,
		sock:     sock,
		poller:   poller,
		endpoint: endpoint,
	}, nil
}

// Endpoint returns the address the subscriber connected to
func (s *Subscriber) Endpoint() string {
	return s.endpoint
}

// NextMessage waits up to timeout for one frame. It returns nil, nil when no
// frame arrived in time.
func (s *Subscriber) NextMessage(timeout time.Duration) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	polled, err := s.poller.Poll(timeout)
	if err != nil {
		if isInterrupted(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("poll failed: %w", err)
	}
	if len(polled) == 0 {
		return nil, nil
	}

	frame, err := s.sock.RecvBytes(zmq.DONTWAIT)
	if err != nil {
		if isInterrupted(err) || zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
			return nil, nil
		}
		return nil, fmt.Errorf("receive failed: %w", err)
	}
	return frame, nil
}

// Close releases the socket and its context
func (s *Subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed = true
		err = closeAll(s.sock, s.ctx)
	})
	return err
}

func checkKey(name string, key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("channel: %s key must be %d bytes, got %d", name, KeySize, len(key))
	}
	return nil
}

func isInterrupted(err error) bool {
	return zmq.AsErrno(err) == zmq.Errno(syscall.EINTR)
}

func closeAll(sock *zmq.Socket, ctx *zmq.Context) error {
	sockErr := sock.Close()
	ctxErr := ctx.Term()
	return errors.Join(sockErr, ctxErr)
}
