// Package capture records the frames a router sends and receives to a pcap
// file and describes them in debug logs.
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"go-ip-router/internal/logger"
	"go-ip-router/internal/router"
)

// SNAPLEN is the capture length written into the pcap header
const SNAPLEN = 65535

// Tap sits between the router and its transport. Every frame is appended
// to the pcap stream before it is passed on.
type Tap struct {
	mutex  sync.Mutex
	writer *pcapgo.Writer
	closer io.Closer
	tx     router.Transmitter
	now    func() time.Time
}

// NewTap writes a pcap header to w and returns a tap forwarding egress
// frames to tx
func NewTap(w io.Writer, tx router.Transmitter) (*Tap, error) {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(SNAPLEN, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Tap{writer: writer, tx: tx, now: time.Now}, nil
}

// OpenTap creates filename and taps into it
func OpenTap(filename string, tx router.Transmitter) (*Tap, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file %s: %w", filename, err)
	}

	tap, err := NewTap(f, tx)
	if err != nil {
		f.Close()
		return nil, err
	}
	tap.closer = f

	logger.Info("PCAP: Capturing to %s", filename)
	return tap, nil
}

// Transmit records frame and hands it to the wrapped transmitter
func (tap *Tap) Transmit(frame []byte, intfName string) error {
	tap.record("tx", frame, intfName)

	if tap.tx == nil {
		return fmt.Errorf("capture: no transmitter for %s", intfName)
	}
	return tap.tx.Transmit(frame, intfName)
}

// Handler wraps an inbound frame handler so received frames are recorded
// before next sees them
func (tap *Tap) Handler(next func(frame []byte, intfName string)) func(frame []byte, intfName string) {
	return func(frame []byte, intfName string) {
		tap.record("rx", frame, intfName)
		next(frame, intfName)
	}
}

func (tap *Tap) record(dir string, frame []byte, intfName string) {
	if logger.DebugEnabled() {
		logger.Debug("PCAP: %s %s %s", dir, intfName, Summary(frame))
	}

	tap.mutex.Lock()
	defer tap.mutex.Unlock()

	ci := gopacket.CaptureInfo{
		Timestamp:     tap.now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := tap.writer.WritePacket(ci, frame); err != nil {
		logger.Warn("PCAP: Failed to record %s frame on %s: %v", dir, intfName, err)
	}
}

// Close closes the capture file opened by OpenTap
func (tap *Tap) Close() error {
	tap.mutex.Lock()
	defer tap.mutex.Unlock()

	if tap.closer == nil {
		return nil
	}
	err := tap.closer.Close()
	tap.closer = nil
	return err
}
