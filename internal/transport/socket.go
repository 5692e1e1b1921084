// Package transport carries Ethernet frames between emulated routers over
// UDP on the loopback address. Every datagram starts with the NUL padded
// name of the interface that should receive the frame at the far end.
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"go-ip-router/internal/logger"
	"go-ip-router/internal/router"
)

const (
	// AUX_DATA_SIZE is the interface name header in front of every frame
	AUX_DATA_SIZE = router.IF_NAME_SIZE
	// MAX_DATAGRAM_SIZE bounds what one receive can return
	MAX_DATAGRAM_SIZE = 65535
	// RECV_TIMEOUT is how often the receive loop checks for Close
	RECV_TIMEOUT = 100 * time.Millisecond
)

// Peer is the far end of the emulated link behind one local interface
type Peer struct {
	Addr      unix.SockaddrInet4
	Interface string
}

// ParsePeer resolves "host:port" into a Peer
func ParsePeer(addr, intfName string) (Peer, error) {
	if intfName == "" || len(intfName) >= AUX_DATA_SIZE {
		return Peer{}, fmt.Errorf("invalid peer interface name %q", intfName)
	}

	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return Peer{}, fmt.Errorf("failed to resolve peer %s: %w", addr, err)
	}
	ip4 := udpAddr.IP.To4()
	if ip4 == nil {
		return Peer{}, fmt.Errorf("peer %s is not an IPv4 address", addr)
	}

	peer := Peer{Interface: intfName}
	peer.Addr.Port = udpAddr.Port
	copy(peer.Addr.Addr[:], ip4)
	return peer, nil
}

func (p Peer) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d/%s",
		p.Addr.Addr[0], p.Addr.Addr[1], p.Addr.Addr[2], p.Addr.Addr[3], p.Addr.Port, p.Interface)
}

// Transport is the UDP socket of one router
type Transport struct {
	name  string
	fd    int
	port  int
	peers map[string]Peer // local interface name -> far end

	mutex   sync.RWMutex
	closed  bool
	serving sync.WaitGroup
}

// New binds a UDP socket on 127.0.0.1:port. Port 0 lets the kernel choose;
// Port reports the result.
func New(name string, port int, peers map[string]Peer) (*Transport, error) {
	sockfd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP socket: %w", err)
	}

	addr := unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
	if err := unix.Bind(sockfd, &addr); err != nil {
		unix.Close(sockfd)
		return nil, fmt.Errorf("failed to bind socket to 127.0.0.1:%d: %w", port, err)
	}

	sa, err := unix.Getsockname(sockfd)
	if err != nil {
		unix.Close(sockfd)
		return nil, fmt.Errorf("failed to read socket address: %w", err)
	}
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		port = sa4.Port
	}

	tv := unix.NsecToTimeval(RECV_TIMEOUT.Nanoseconds())
	if err := unix.SetsockoptTimeval(sockfd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(sockfd)
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}

	t := &Transport{
		name:  name,
		fd:    sockfd,
		port:  port,
		peers: make(map[string]Peer, len(peers)),
	}
	for intf, peer := range peers {
		t.peers[intf] = peer
	}

	logger.Info("Node %s: UDP socket initialized on 127.0.0.1:%d (fd: %d)", name, port, sockfd)
	return t, nil
}

// Port returns the bound UDP port
func (t *Transport) Port() int {
	return t.port
}

// SetPeer attaches or replaces the far end of a local interface
func (t *Transport) SetPeer(intfName string, peer Peer) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.peers[intfName] = peer
}

// Transmit sends frame to the peer of intfName. It satisfies
// router.Transmitter.
func (t *Transport) Transmit(frame []byte, intfName string) error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.closed {
		return fmt.Errorf("transport %s is closed", t.name)
	}

	peer, ok := t.peers[intfName]
	if !ok {
		return fmt.Errorf("interface %s has no link", intfName)
	}

	// Send buffer: remote interface name, then the frame
	send_buffer := make([]byte, AUX_DATA_SIZE+len(frame))
	copy(send_buffer[:AUX_DATA_SIZE], peer.Interface)
	copy(send_buffer[AUX_DATA_SIZE:], frame)

	dst_addr := peer.Addr
	if err := unix.Sendto(t.fd, send_buffer, 0, &dst_addr); err != nil {
		return fmt.Errorf("failed to send %d bytes from %s (intf: %s) to %s: %w",
			len(frame), t.name, intfName, peer, err)
	}

	logger.Debug("Node %s: Sent %d bytes on %s to %s", t.name, len(frame), intfName, peer)
	return nil
}

// Close stops Serve and releases the socket
func (t *Transport) Close() error {
	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return nil
	}
	t.closed = true
	t.mutex.Unlock()

	// Serve notices within RECV_TIMEOUT
	t.serving.Wait()

	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("failed to close socket for %s: %w", t.name, err)
	}
	logger.Info("Node %s: UDP socket closed (port %d)", t.name, t.port)
	return nil
}

func (t *Transport) isClosed() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.closed
}
