// Package router is the forwarding core of a software IPv4 router. It
// consumes raw Ethernet frames tagged with the name of the interface they
// arrived on, answers ARP, delivers ICMP echo locally, forwards everything
// else by longest prefix match and produces ICMP errors. Frames leave
// through a Transmitter supplied by the caller.
package router

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go-ip-router/internal/logger"
)

// ARP_SWEEP_INTERVAL is how often the background sweep runs
const ARP_SWEEP_INTERVAL = 1 * time.Second

// Transmitter hands a complete Ethernet frame to the link layer for
// egress on the named interface. Implementations must not retain frame.
type Transmitter interface {
	Transmit(frame []byte, intfName string) error
}

// TransmitFunc adapts a function to Transmitter
type TransmitFunc func(frame []byte, intfName string) error

// Transmit calls f
func (f TransmitFunc) Transmit(frame []byte, intfName string) error {
	return f(frame, intfName)
}

// Router holds the state of one router instance. Interface and routing
// tables are read-only after New; the ARP cache is the only shared mutable
// state between HandleFrame and the sweep.
type Router struct {
	name       string
	interfaces *InterfaceTable
	routes     *RoutingTable
	cache      *ArpCache
	tx         Transmitter

	ipID          atomic.Uint32
	sweepInterval time.Duration

	mutex  sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Router
type Option func(*Router)

// WithName labels the router in logs and dumps
func WithName(name string) Option {
	return func(r *Router) { r.name = name }
}

// WithArpCache supplies a preconfigured cache
func WithArpCache(cache *ArpCache) Option {
	return func(r *Router) { r.cache = cache }
}

// WithSweepInterval overrides ARP_SWEEP_INTERVAL
func WithSweepInterval(d time.Duration) Option {
	return func(r *Router) { r.sweepInterval = d }
}

// New builds a router over the given interfaces and routes. Every route
// must name a configured interface.
func New(intfs []Interface, routes *RoutingTable, tx Transmitter, opts ...Option) (*Router, error) {
	if tx == nil {
		return nil, fmt.Errorf("transmitter cannot be nil")
	}

	table, err := NewInterfaceTable(intfs)
	if err != nil {
		return nil, err
	}

	if routes == nil {
		routes = InitRoutingTable()
	}
	for _, route := range routes.routes {
		if table.FindInterface(route.OIF) == nil {
			return nil, fmt.Errorf("route %s: interface %q not found", route.String(), route.OIF)
		}
	}

	r := &Router{
		name:          "router",
		interfaces:    table,
		routes:        routes,
		tx:            tx,
		sweepInterval: ARP_SWEEP_INTERVAL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewArpCache()
	}

	return r, nil
}

// Name returns the router's label
func (r *Router) Name() string {
	return r.name
}

// Start launches the periodic ARP sweep. Calling Start twice is a no-op.
func (r *Router) Start() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.stopCh != nil {
		return
	}
	stopCh := make(chan struct{})
	r.stopCh = stopCh

	logger.Info("ARP: Starting sweep for %s (interval: %v)", r.name, r.sweepInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				logger.Info("ARP: Stopping sweep for %s", r.name)
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Stop ends the sweep started by Start and waits for it to exit
func (r *Router) Stop() {
	r.mutex.Lock()
	stopCh := r.stopCh
	r.stopCh = nil
	r.mutex.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	r.wg.Wait()
}

// Sweep runs one pass of ARP retry and expiry: requests due for a resend
// are broadcast again out of every interface, exhausted ones answer each
// queued packet with ICMP host unreachable.
func (r *Router) Sweep() {
	resend, expired := r.cache.Sweep()

	// Retries are broadcast on every interface
	intfs := r.interfaces.All()
	for _, ip := range resend {
		for i := range intfs {
			r.sendArpRequest(&intfs[i], ip)
		}
	}

	for _, req := range expired {
		for _, pkt := range req.Packets {
			r.hostUnreachable(pkt)
		}
		req.Packets = nil
	}
}

func (r *Router) transmit(frame []byte, intfName string) {
	if err := r.tx.Transmit(frame, intfName); err != nil {
		logger.Error("L2: Transmit on %s failed: %v", intfName, err)
	}
}

func (r *Router) nextIPID() uint16 {
	return uint16(r.ipID.Add(1))
}

// Interfaces returns the interface list
func (r *Router) Interfaces() []Interface {
	return r.interfaces.All()
}

// Routes returns the routing table entries
func (r *Router) Routes() []L3Route {
	return r.routes.Routes()
}

// LookupRoute exposes the longest prefix match, for inspection
func (r *Router) LookupRoute(ip uint32) *L3Route {
	return r.routes.LookupLPM(ip)
}

// ArpEntries returns the live ARP entries
func (r *Router) ArpEntries() []ArpEntry {
	return r.cache.Entries()
}

// PendingRequests returns the unresolved ARP requests
func (r *Router) PendingRequests() []PendingSnapshot {
	return r.cache.Pending()
}
