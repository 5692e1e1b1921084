package transport

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"go-ip-router/internal/logger"
)

// Handler consumes one received frame. frame is only valid for the call.
type Handler func(frame []byte, intfName string)

// Serve receives datagrams and hands each frame to handler with the
// interface name taken from the datagram header. It returns nil once Close
// is called.
func (t *Transport) Serve(handler Handler) error {
	t.mutex.Lock()
	if t.closed {
		t.mutex.Unlock()
		return fmt.Errorf("transport %s is closed", t.name)
	}
	t.serving.Add(1)
	t.mutex.Unlock()
	defer t.serving.Done()

	logger.Info("Started UDP monitoring for node %s on port %d", t.name, t.port)

	buffer := make([]byte, MAX_DATAGRAM_SIZE)
	for {
		if t.isClosed() {
			logger.Info("Stopping UDP monitoring for node %s", t.name)
			return nil
		}

		n, _, err := unix.Recvfrom(t.fd, buffer, 0)
		if err != nil {
			// Timeouts let the loop observe Close
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
				continue
			}
			if t.isClosed() {
				return nil
			}
			return fmt.Errorf("error receiving UDP packet on node %s: %w", t.name, err)
		}

		if n <= AUX_DATA_SIZE {
			logger.Warn("Packet too small (%d bytes) on node %s", n, t.name)
			continue
		}

		intf_name := buffer[:AUX_DATA_SIZE]
		if i := bytes.IndexByte(intf_name, 0); i >= 0 {
			intf_name = intf_name[:i]
		}
		if len(intf_name) == 0 {
			logger.Warn("Packet without interface name on node %s", t.name)
			continue
		}

		handler(buffer[AUX_DATA_SIZE:n], string(intf_name))
	}
}
