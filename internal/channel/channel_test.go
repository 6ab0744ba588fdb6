package channel

import (
	"errors"
	"testing"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keypair struct {
	public []byte
	secret []byte
}

func newKeypair(t *testing.T) keypair {
	t.Helper()
	public, secret, err := zmq.NewCurveKeypair()
	require.NoError(t, err)
	return keypair{public: []byte(zmq.Z85decode(public)), secret: []byte(zmq.Z85decode(secret))}
}

func listen(t *testing.T, server keypair) (*Publisher, string) {
	t.Helper()
	pub, err := Listen("tcp://127.0.0.1:*", server.secret)
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })

	endpoint, err := pub.Endpoint()
	require.NoError(t, err)
	return pub, endpoint
}

// receive keeps publishing until the subscriber has joined and a frame
// arrives, or the deadline passes.
func receive(t *testing.T, pub *Publisher, sub *Subscriber, frame []byte, deadline time.Duration) []byte {
	t.Helper()
	stop := time.Now().Add(deadline)
	for time.Now().Before(stop) {
		require.NoError(t, pub.Send(frame))
		got, err := sub.NextMessage(50 * time.Millisecond)
		require.NoError(t, err)
		if got != nil {
			return got
		}
	}
	return nil
}

func TestOpen_RejectsBadKeyLengths(t *testing.T) {
	good := make([]byte, KeySize)
	short := make([]byte, 16)

	_, err := Open("tcp://127.0.0.1:5555", short, good, good, Options{})
	assert.Error(t, err)
	_, err = Open("tcp://127.0.0.1:5555", good, short, good, Options{})
	assert.Error(t, err)
	_, err = Open("tcp://127.0.0.1:5555", good, good, nil, Options{})
	assert.Error(t, err)
}

func TestListen_RejectsBadKeyLength(t *testing.T) {
	_, err := Listen("tcp://127.0.0.1:*", []byte("too short"))
	assert.Error(t, err)
}

func TestSubscriber_ReceivesOverCurve(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping socket test in short mode")
	}

	server := newKeypair(t)
	client := newKeypair(t)
	pub, endpoint := listen(t, server)

	sub, err := Open(endpoint, client.public, client.secret, server.public, Options{ReconnectInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, endpoint, sub.Endpoint())

	got := receive(t, pub, sub, []byte("sweep"), 5*time.Second)
	assert.Equal(t, []byte("sweep"), got)
}

func TestSubscriber_WrongServerKeyOnlyTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping socket test in short mode")
	}

	server := newKeypair(t)
	impostor := newKeypair(t)
	client := newKeypair(t)
	pub, endpoint := listen(t, server)

	sub, err := Open(endpoint, client.public, client.secret, impostor.public, Options{})
	require.NoError(t, err)
	defer sub.Close()

	got := receive(t, pub, sub, []byte("secret sweep"), time.Second)
	assert.Nil(t, got)
}

func TestSubscriber_TimeoutWithoutPublisher(t *testing.T) {
	client := newKeypair(t)
	server := newKeypair(t)

	sub, err := Open("tcp://127.0.0.1:1", client.public, client.secret, server.public, Options{})
	require.NoError(t, err)
	defer sub.Close()

	start := time.Now()
	got, err := sub.NextMessage(100 * time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestSubscriber_ClosedChannel(t *testing.T) {
	client := newKeypair(t)
	server := newKeypair(t)

	sub, err := Open("tcp://127.0.0.1:1", client.public, client.secret, server.public, Options{})
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, err = sub.NextMessage(10 * time.Millisecond)
	assert.True(t, errors.Is(err, ErrClosed))
}
