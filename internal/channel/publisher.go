package channel

import (
	"fmt"
	"sync"

	zmq "github.com/pebbe/zmq4"
)

// Publisher is the CURVE server side of the sweep channel. It binds an
// endpoint and fans frames out to every authenticated subscriber. Send is
// serialized internally.
type Publisher struct {
	mu   sync.Mutex
	ctx  *zmq.Context
	sock *zmq.Socket

	closeOnce sync.Once
}

// Listen binds a PUB socket that requires CURVE with the given server secret key.
func Listen(endpoint string, serverSecret []byte) (*Publisher, error) {
	if err := checkKey("server secret", serverSecret); err != nil {
		return nil, err
	}

	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create zmq context: %w", err)
	}

	sock, err := ctx.NewSocket(zmq.PUB)
	if err != nil {
		ctx.Term()
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	setup := []func() error{
		func() error { return sock.SetLinger(0) },
		func() error { return sock.SetCurveServer(1) },
		func() error { return sock.SetCurveSecretkey(zmq.Z85encode(string(serverSecret))) },
		func() error { return sock.Bind(endpoint) },
	}
	for _, step := range setup {
		if err := step(); err != nil {
			sock.Close()
			ctx.Term()
			return nil, fmt.Errorf("failed to set up publisher on %s: %w", endpoint, err)
		}
	}

	return &Publisher{ctx: ctx, sock: sock}, nil
}

// Endpoint returns the bound address, with any wildcard port resolved
func (p *Publisher) Endpoint() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sock.GetLastEndpoint()
}

// Send publishes one frame. Frames are dropped by libzmq when no subscriber
// is connected or a subscriber's queue is full.
func (p *Publisher) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.sock.SendBytes(frame, 0); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}
	return nil
}

// Close releases the socket and its context
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		err = closeAll(p.sock, p.ctx)
	})
	return err
}
