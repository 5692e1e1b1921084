package transport

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type received struct {
	frame []byte
	intf  string
}

type sink struct {
	mu  sync.Mutex
	got []received
}

func (s *sink) handle(frame []byte, intfName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, received{frame: append([]byte(nil), frame...), intf: intfName})
}

func (s *sink) all() []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]received(nil), s.got...)
}

func serve(t *testing.T, tr *Transport, h Handler) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- tr.Serve(h) }()
	t.Cleanup(func() {
		require.NoError(t, tr.Close())
		// Serve may lose the race with Close and report it is closed
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})
}

func TestTransmitBetweenTwoTransports(t *testing.T) {
	a, err := New("A", 0, nil)
	require.NoError(t, err)
	b, err := New("B", 0, nil)
	require.NoError(t, err)
	require.NotZero(t, a.Port())
	require.NotZero(t, b.Port())

	peerB, err := ParsePeer(fmt.Sprintf("127.0.0.1:%d", b.Port()), "eth0")
	require.NoError(t, err)
	a.SetPeer("eth1", peerB)

	var got sink
	serve(t, a, func([]byte, string) {})
	serve(t, b, got.handle)

	frame := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 1, 2, 3, 4, 5, 6, 0x08, 0x06, 0xde, 0xad}
	require.NoError(t, a.Transmit(frame, "eth1"))

	require.Eventually(t, func() bool { return len(got.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, frame, got.all()[0].frame)
	assert.Equal(t, "eth0", got.all()[0].intf)
}

func TestTransmitWithoutLink(t *testing.T) {
	a, err := New("A", 0, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Error(t, a.Transmit([]byte{1, 2, 3}, "eth9"))
}

func TestShortAndUnnamedDatagramsAreDropped(t *testing.T) {
	b, err := New("B", 0, nil)
	require.NoError(t, err)

	var got sink
	serve(t, b, got.handle)

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	require.NoError(t, err)
	defer unix.Close(fd)
	dst := &unix.SockaddrInet4{Port: b.Port(), Addr: [4]byte{127, 0, 0, 1}}

	// Header only
	require.NoError(t, unix.Sendto(fd, make([]byte, AUX_DATA_SIZE), 0, dst))
	// Empty interface name
	require.NoError(t, unix.Sendto(fd, make([]byte, AUX_DATA_SIZE+4), 0, dst))
	// A good one to know the others were processed first
	good := append(make([]byte, AUX_DATA_SIZE), 0xaa)
	copy(good, "eth3")
	require.NoError(t, unix.Sendto(fd, good, 0, dst))

	require.Eventually(t, func() bool { return len(got.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "eth3", got.all()[0].intf)
	assert.Equal(t, []byte{0xaa}, got.all()[0].frame)
}

func TestClosedTransport(t *testing.T) {
	a, err := New("A", 0, nil)
	require.NoError(t, err)
	peer, err := ParsePeer("127.0.0.1:9", "eth0")
	require.NoError(t, err)
	a.SetPeer("eth1", peer)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.Error(t, a.Transmit([]byte{1}, "eth1"))
	assert.Error(t, a.Serve(func([]byte, string) {}))
}

func TestParsePeer(t *testing.T) {
	peer, err := ParsePeer("127.0.0.1:40002", "eth0")
	require.NoError(t, err)
	assert.Equal(t, 40002, peer.Addr.Port)
	assert.Equal(t, [4]byte{127, 0, 0, 1}, peer.Addr.Addr)
	assert.Equal(t, "127.0.0.1:40002/eth0", peer.String())

	_, err = ParsePeer("127.0.0.1:40002", "")
	assert.Error(t, err)
	_, err = ParsePeer("127.0.0.1:40002", "a-very-long-interface")
	assert.Error(t, err)
	_, err = ParsePeer("not an address", "eth0")
	assert.Error(t, err)
}
