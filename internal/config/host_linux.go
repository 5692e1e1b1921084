//go:build linux

package config

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"go-ip-router/internal/logger"
	"go-ip-router/internal/router"
)

// FromHost builds the interface list and routing table from the kernel's
// view of the named links. Each link contributes its first IPv4 address;
// IPv4 routes through those links are copied in kernel order.
func FromHost(names []string) ([]router.Interface, *router.RoutingTable, error) {
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no host interfaces named")
	}

	intfs := make([]router.Interface, 0, len(names))
	links := make(map[int]string, len(names))

	for _, name := range names {
		link, err := netlink.LinkByName(name)
		if err != nil {
			return nil, nil, fmt.Errorf("link %s: %w", name, err)
		}

		mac, err := router.MacFromHardwareAddr(link.Attrs().HardwareAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("link %s: %w", name, err)
		}

		addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, nil, fmt.Errorf("link %s: listing addresses: %w", name, err)
		}
		if len(addrs) == 0 {
			return nil, nil, fmt.Errorf("link %s has no IPv4 address", name)
		}

		ip, err := router.IPToUint32(addrs[0].IP)
		if err != nil {
			return nil, nil, fmt.Errorf("link %s: %w", name, err)
		}
		ones, _ := addrs[0].Mask.Size()

		intfs = append(intfs, router.Interface{
			Name: name,
			Mac:  mac,
			IP:   ip,
			Mask: router.MaskFromPrefixLen(uint8(ones)),
		})
		links[link.Attrs().Index] = name

		logger.Info("Host: Imported %s %s %s/%d", name, mac, addrs[0].IP, ones)
	}

	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, nil, fmt.Errorf("listing routes: %w", err)
	}

	rt := router.InitRoutingTable()
	for _, route := range routes {
		name, ok := links[route.LinkIndex]
		if !ok {
			continue
		}

		var dest, mask, gateway uint32
		if route.Dst != nil {
			if dest, err = router.IPToUint32(route.Dst.IP); err != nil {
				continue
			}
			ones, _ := route.Dst.Mask.Size()
			mask = router.MaskFromPrefixLen(uint8(ones))
		}
		if route.Gw != nil {
			if gateway, err = router.IPToUint32(route.Gw); err != nil {
				continue
			}
		}

		if err := rt.AddRoute(dest, mask, gateway, name); err != nil {
			return nil, nil, err
		}
	}

	return intfs, rt, nil
}
