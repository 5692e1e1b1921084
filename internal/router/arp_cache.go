package router

import (
	"sync"
	"time"

	"go-ip-router/internal/logger"
)

// ====== ARP cache and pending-request queue ======

const (
	// ARP_ENTRY_TIMEOUT is how long a resolved entry stays usable
	ARP_ENTRY_TIMEOUT = 15 * time.Second
	// ARP_RESEND_INTERVAL is the minimum gap between requests for one IP
	ARP_RESEND_INTERVAL = 1 * time.Second
	// ARP_MAX_SENDS is how many requests go out before the IP is declared
	// unreachable
	ARP_MAX_SENDS = 5
)

// ArpEntry is a resolved IP to MAC mapping
type ArpEntry struct {
	IP      uint32
	Mac     MacAddr
	AddedAt time.Time
}

// QueuedPacket is a frame waiting for its next hop to resolve. Frame is a
// private copy owned by the cache until the request is flushed or dropped.
type QueuedPacket struct {
	Frame []byte
	OIF   string // interface the frame will leave on
	IIF   string // interface the frame arrived on, used for ICMP errors
}

// PendingRequest tracks an unresolved ARP lookup and the packets blocked
// on it. IP never changes; the other fields are only touched under the
// cache lock.
type PendingRequest struct {
	IP        uint32
	TimesSent int
	SentAt    time.Time
	Packets   []*QueuedPacket
}

// ArpCache owns the resolved entries and the pending requests. Both sets
// share one lock so the sweep and the packet path never interleave.
type ArpCache struct {
	mutex    sync.Mutex
	entries  map[uint32]*ArpEntry
	requests []*PendingRequest

	timeout        time.Duration
	resendInterval time.Duration
	maxSends       int
	now            func() time.Time
}

// ArpCacheOption tunes an ArpCache
type ArpCacheOption func(*ArpCache)

// WithEntryTimeout overrides ARP_ENTRY_TIMEOUT
func WithEntryTimeout(d time.Duration) ArpCacheOption {
	return func(c *ArpCache) { c.timeout = d }
}

// WithResendInterval overrides ARP_RESEND_INTERVAL
func WithResendInterval(d time.Duration) ArpCacheOption {
	return func(c *ArpCache) { c.resendInterval = d }
}

// WithMaxSends overrides ARP_MAX_SENDS
func WithMaxSends(n int) ArpCacheOption {
	return func(c *ArpCache) { c.maxSends = n }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) ArpCacheOption {
	return func(c *ArpCache) { c.now = now }
}

// NewArpCache creates an empty cache
func NewArpCache(opts ...ArpCacheOption) *ArpCache {
	c := &ArpCache{
		entries:        make(map[uint32]*ArpEntry),
		timeout:        ARP_ENTRY_TIMEOUT,
		resendInterval: ARP_RESEND_INTERVAL,
		maxSends:       ARP_MAX_SENDS,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the MAC for ip if a non-expired entry exists
func (c *ArpCache) Lookup(ip uint32) (MacAddr, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[ip]
	if !ok {
		return MacAddr{}, false
	}
	if c.now().Sub(entry.AddedAt) >= c.timeout {
		return MacAddr{}, false
	}
	return entry.Mac, true
}

// Insert records or refreshes ip -> mac. If a request was pending for ip it
// is removed from the cache and returned; the caller now owns its packets
// and must send them.
func (c *ArpCache) Insert(mac MacAddr, ip uint32) *PendingRequest {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[ip] = &ArpEntry{
		IP:      ip,
		Mac:     mac,
		AddedAt: c.now(),
	}

	for i, req := range c.requests {
		if req.IP == ip {
			c.requests = append(c.requests[:i], c.requests[i+1:]...)
			return req
		}
	}
	return nil
}

// QueuePacket appends a copy of frame to the pending request for ip,
// creating the request when none exists. A new request is stamped as sent
// once: the caller is expected to send the first ARP request right away.
func (c *ArpCache) QueuePacket(ip uint32, frame []byte, oif, iif string) (*PendingRequest, bool) {
	pkt_copy := make([]byte, len(frame))
	copy(pkt_copy, frame)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	var req *PendingRequest
	for _, r := range c.requests {
		if r.IP == ip {
			req = r
			break
		}
	}

	created := false
	if req == nil {
		req = &PendingRequest{
			IP:        ip,
			TimesSent: 1,
			SentAt:    c.now(),
		}
		c.requests = append(c.requests, req)
		created = true
	}

	req.Packets = append(req.Packets, &QueuedPacket{
		Frame: pkt_copy,
		OIF:   oif,
		IIF:   iif,
	})

	logger.Debug("ARP: Queued %d byte packet for %s (%d waiting)",
		len(frame), IPUint32ToString(ip), len(req.Packets))
	return req, created
}

// RemoveRequest deletes req if it is still pending
func (c *ArpCache) RemoveRequest(req *PendingRequest) {
	if req == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, r := range c.requests {
		if r == req {
			c.requests = append(c.requests[:i], c.requests[i+1:]...)
			return
		}
	}
}

// Sweep performs one periodic pass. Requests that already went out
// maxSends times are removed and returned in expired (the caller owns them
// and answers their packets). Others due for a resend have their counters
// bumped and their target IPs come back in resend. Stale entries are
// purged.
func (c *ArpCache) Sweep() (resend []uint32, expired []*PendingRequest) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()

	for ip, entry := range c.entries {
		if now.Sub(entry.AddedAt) >= c.timeout {
			logger.Debug("ARP: Removing expired entry for %s (age: %v)",
				IPUint32ToString(ip), now.Sub(entry.AddedAt))
			delete(c.entries, ip)
		}
	}

	kept := c.requests[:0]
	for _, req := range c.requests {
		if now.Sub(req.SentAt) < c.resendInterval {
			kept = append(kept, req)
			continue
		}

		if req.TimesSent >= c.maxSends {
			logger.Info("ARP: Giving up on %s after %d requests (%d packets dropped)",
				IPUint32ToString(req.IP), req.TimesSent, len(req.Packets))
			expired = append(expired, req)
			continue
		}

		req.TimesSent++
		req.SentAt = now
		resend = append(resend, req.IP)
		kept = append(kept, req)
	}
	for i := len(kept); i < len(c.requests); i++ {
		c.requests[i] = nil
	}
	c.requests = kept

	return resend, expired
}

// Entries returns a snapshot of the non-expired entries
func (c *ArpCache) Entries() []ArpEntry {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	out := make([]ArpEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		if now.Sub(entry.AddedAt) < c.timeout {
			out = append(out, *entry)
		}
	}
	return out
}

// PendingSnapshot is a read-only view of a pending request
type PendingSnapshot struct {
	IP        uint32
	TimesSent int
	SentAt    time.Time
	Queued    int
}

// Pending returns a snapshot of the pending requests in creation order
func (c *ArpCache) Pending() []PendingSnapshot {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	out := make([]PendingSnapshot, 0, len(c.requests))
	for _, req := range c.requests {
		out = append(out, PendingSnapshot{
			IP:        req.IP,
			TimesSent: req.TimesSent,
			SentAt:    req.SentAt,
			Queued:    len(req.Packets),
		})
	}
	return out
}
