package router

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// DumpInterfaces prints the interface list
func (r *Router) DumpInterfaces(w io.Writer) {
	fmt.Fprintf(w, "\n=== Interfaces of %s ===\n", r.name)
	fmt.Fprintf(w, "%-16s %-17s %-15s %s\n", "Name", "MAC Address", "IP Address", "Mask")
	fmt.Fprintf(w, "%-16s %-17s %-15s %s\n", "----", "-----------", "----------", "----")

	for _, intf := range r.interfaces.All() {
		mask := "-"
		if intf.Mask != 0 {
			mask = IPUint32ToString(intf.Mask)
		}
		fmt.Fprintf(w, "%-16s %-17s %-15s %s\n",
			intf.Name, intf.Mac.String(), IPUint32ToString(intf.IP), mask)
	}
	fmt.Fprintln(w)
}

// DumpRoutingTable prints the routing table
func (r *Router) DumpRoutingTable(w io.Writer) {
	fmt.Fprintf(w, "\n=== Routing Table of %s ===\n", r.name)
	fmt.Fprintf(w, "%-18s %-15s %-15s %s\n", "Destination", "Gateway", "Mask", "Interface")
	fmt.Fprintf(w, "%-18s %-15s %-15s %s\n", "-----------", "-------", "----", "---------")

	routes := r.routes.Routes()
	if len(routes) == 0 {
		fmt.Fprintf(w, "(empty)\n\n")
		return
	}

	for _, route := range routes {
		fmt.Fprintf(w, "%-18s %-15s %-15s %s\n",
			fmt.Sprintf("%s/%d", IPUint32ToString(route.Dest), PrefixLen(route.Mask)),
			IPUint32ToString(route.GatewayIP), IPUint32ToString(route.Mask), route.OIF)
	}
	fmt.Fprintln(w)
}

// DumpArpCache prints the live ARP entries ordered by IP
func (r *Router) DumpArpCache(w io.Writer) {
	entries := r.cache.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].IP < entries[j].IP })

	fmt.Fprintf(w, "\n=== ARP Cache of %s ===\n", r.name)
	fmt.Fprintf(w, "%-15s %-17s %s\n", "IP Address", "MAC Address", "Age")
	fmt.Fprintf(w, "%-15s %-17s %s\n", "----------", "-----------", "---")

	now := r.cache.now()
	for _, entry := range entries {
		fmt.Fprintf(w, "%-15s %-17s %v\n",
			IPUint32ToString(entry.IP), entry.Mac.String(), now.Sub(entry.AddedAt).Truncate(time.Second))
	}
	if len(entries) == 0 {
		fmt.Fprintf(w, "(empty)\n")
	}
	fmt.Fprintf(w, "Total entries: %d\n\n", len(entries))
}

// DumpPending prints the unresolved ARP requests
func (r *Router) DumpPending(w io.Writer) {
	pending := r.cache.Pending()

	fmt.Fprintf(w, "\n=== Pending ARP Requests of %s ===\n", r.name)
	fmt.Fprintf(w, "%-15s %-6s %s\n", "IP Address", "Sent", "Queued")
	fmt.Fprintf(w, "%-15s %-6s %s\n", "----------", "----", "------")

	for _, req := range pending {
		fmt.Fprintf(w, "%-15s %-6d %d\n", IPUint32ToString(req.IP), req.TimesSent, req.Queued)
	}
	if len(pending) == 0 {
		fmt.Fprintf(w, "(none)\n")
	}
	fmt.Fprintln(w)
}
