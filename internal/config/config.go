// Package config loads a router description from YAML, from a classic
// rtable file or from the host's own interfaces and routes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"go-ip-router/internal/logger"
	"go-ip-router/internal/router"
)

// YAML router configuration structures
type RouterConfig struct {
	Router     RouterInfo        `yaml:"router"`
	Transport  TransportConfig   `yaml:"transport"`
	Interfaces []InterfaceConfig `yaml:"interfaces"`
	Routes     []RouteConfig     `yaml:"routes"`
	Arp        ArpConfig         `yaml:"arp"`
}

type RouterInfo struct {
	Name string `yaml:"name"`
}

type TransportConfig struct {
	ListenPort int `yaml:"listen_port"` // 0 picks a free port
}

type InterfaceConfig struct {
	Name string     `yaml:"name"`
	MAC  string     `yaml:"mac"`
	IP   string     `yaml:"ip"`
	Mask int        `yaml:"mask"` // prefix length, optional
	Peer PeerConfig `yaml:"peer"`
}

// PeerConfig is the far end of the emulated link attached to an interface
type PeerConfig struct {
	Address   string `yaml:"address"`   // host:port of the peer's UDP socket
	Interface string `yaml:"interface"` // interface name at the peer
}

type RouteConfig struct {
	Destination string `yaml:"destination"`
	Mask        int    `yaml:"mask"`    // prefix length
	Gateway     string `yaml:"gateway"` // empty or 0.0.0.0 for directly attached
	Interface   string `yaml:"interface"`
}

type ArpConfig struct {
	EntryTimeout   time.Duration `yaml:"entry_timeout"`
	ResendInterval time.Duration `yaml:"resend_interval"`
	MaxSends       int           `yaml:"max_sends"`
}

// Load reads and validates a YAML router file
func Load(filename string) (*RouterConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML router description
func Parse(data []byte) (*RouterConfig, error) {
	var config RouterConfig
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if config.Router.Name == "" {
		config.Router.Name = "router"
	}
	return &config, nil
}

// Validate performs basic validation on the configuration
func (config *RouterConfig) Validate() error {
	if len(config.Interfaces) == 0 {
		return fmt.Errorf("at least one interface is required")
	}

	if config.Transport.ListenPort < 0 || config.Transport.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port %d", config.Transport.ListenPort)
	}

	interfaceMap := make(map[string]bool)
	for _, intf := range config.Interfaces {
		if intf.Name == "" {
			return fmt.Errorf("interface name is required")
		}
		if len(intf.Name) >= router.IF_NAME_SIZE {
			return fmt.Errorf("interface name %s is longer than %d bytes", intf.Name, router.IF_NAME_SIZE-1)
		}
		if interfaceMap[intf.Name] {
			return fmt.Errorf("duplicate interface name: %s", intf.Name)
		}
		interfaceMap[intf.Name] = true

		if _, err := router.ParseMac(intf.MAC); err != nil {
			return fmt.Errorf("interface %s: %w", intf.Name, err)
		}
		if _, err := router.IPStringToUint32(intf.IP); err != nil {
			return fmt.Errorf("interface %s: %w", intf.Name, err)
		}
		if intf.Mask < 0 || intf.Mask > 32 {
			return fmt.Errorf("invalid subnet mask %d for interface %s", intf.Mask, intf.Name)
		}
		if (intf.Peer.Address == "") != (intf.Peer.Interface == "") {
			return fmt.Errorf("interface %s: peer address and peer interface go together", intf.Name)
		}
		if len(intf.Peer.Interface) >= router.IF_NAME_SIZE {
			return fmt.Errorf("interface %s: peer interface name %s is longer than %d bytes",
				intf.Name, intf.Peer.Interface, router.IF_NAME_SIZE-1)
		}
	}

	for i, route := range config.Routes {
		if _, err := router.IPStringToUint32(route.Destination); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		if route.Mask < 0 || route.Mask > 32 {
			return fmt.Errorf("route %d: invalid mask %d", i, route.Mask)
		}
		if route.Gateway != "" {
			if _, err := router.IPStringToUint32(route.Gateway); err != nil {
				return fmt.Errorf("route %d: %w", i, err)
			}
		}
		if !interfaceMap[route.Interface] {
			return fmt.Errorf("route %d: interface %q not found", i, route.Interface)
		}
	}

	if config.Arp.EntryTimeout < 0 || config.Arp.ResendInterval < 0 || config.Arp.MaxSends < 0 {
		return fmt.Errorf("arp timings must be non-negative")
	}

	return nil
}

// BuildInterfaces converts the interface section for the router core
func (config *RouterConfig) BuildInterfaces() ([]router.Interface, error) {
	intfs := make([]router.Interface, 0, len(config.Interfaces))

	for _, intfConfig := range config.Interfaces {
		mac, err := router.ParseMac(intfConfig.MAC)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", intfConfig.Name, err)
		}
		ip, err := router.IPStringToUint32(intfConfig.IP)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", intfConfig.Name, err)
		}

		intfs = append(intfs, router.Interface{
			Name: intfConfig.Name,
			Mac:  mac,
			IP:   ip,
			Mask: router.MaskFromPrefixLen(uint8(intfConfig.Mask)),
		})
		logger.Debug("Interface %s: %s %s/%d", intfConfig.Name, mac, intfConfig.IP, intfConfig.Mask)
	}

	return intfs, nil
}

// BuildRoutingTable converts the routes section, in file order
func (config *RouterConfig) BuildRoutingTable() (*router.RoutingTable, error) {
	rt := router.InitRoutingTable()

	for i, routeConfig := range config.Routes {
		dest, err := router.IPStringToUint32(routeConfig.Destination)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}

		var gateway uint32
		if routeConfig.Gateway != "" {
			gateway, err = router.IPStringToUint32(routeConfig.Gateway)
			if err != nil {
				return nil, fmt.Errorf("route %d: %w", i, err)
			}
		}

		err = rt.AddRoute(dest, router.MaskFromPrefixLen(uint8(routeConfig.Mask)), gateway, routeConfig.Interface)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
	}

	return rt, nil
}

// ArpCacheOptions returns the cache overrides present in the arp section
func (config *RouterConfig) ArpCacheOptions() []router.ArpCacheOption {
	var opts []router.ArpCacheOption
	if config.Arp.EntryTimeout > 0 {
		opts = append(opts, router.WithEntryTimeout(config.Arp.EntryTimeout))
	}
	if config.Arp.ResendInterval > 0 {
		opts = append(opts, router.WithResendInterval(config.Arp.ResendInterval))
	}
	if config.Arp.MaxSends > 0 {
		opts = append(opts, router.WithMaxSends(config.Arp.MaxSends))
	}
	return opts
}
