package router

import (
	"fmt"
)

// IF_NAME_SIZE bounds interface names so they fit the link emulation header.
const IF_NAME_SIZE = 16

// Interface is one router port. Immutable once the router is built.
type Interface struct {
	Name string
	Mac  MacAddr
	IP   uint32
	Mask uint32 // optional; zero when the config did not supply one
}

func (intf *Interface) String() string {
	return fmt.Sprintf("%s %s %s", intf.Name, intf.Mac, IPUint32ToString(intf.IP))
}

// InterfaceTable is the read-only interface list of a router.
type InterfaceTable struct {
	intfs []Interface
}

// NewInterfaceTable validates and copies the interface list. Names must be
// unique, non-empty and shorter than IF_NAME_SIZE.
func NewInterfaceTable(intfs []Interface) (*InterfaceTable, error) {
	seen := make(map[string]bool, len(intfs))
	for _, intf := range intfs {
		if intf.Name == "" {
			return nil, fmt.Errorf("interface name is required")
		}
		if len(intf.Name) >= IF_NAME_SIZE {
			return nil, fmt.Errorf("interface name %q longer than %d bytes", intf.Name, IF_NAME_SIZE-1)
		}
		if seen[intf.Name] {
			return nil, fmt.Errorf("duplicate interface name: %s", intf.Name)
		}
		seen[intf.Name] = true
	}

	table := &InterfaceTable{intfs: make([]Interface, len(intfs))}
	copy(table.intfs, intfs)
	return table, nil
}

// FindInterface finds an interface by name
func (t *InterfaceTable) FindInterface(name string) *Interface {
	for i := range t.intfs {
		if t.intfs[i].Name == name {
			return &t.intfs[i]
		}
	}
	return nil
}

// FindInterfaceByIP returns the interface owning ip, if any
func (t *InterfaceTable) FindInterfaceByIP(ip uint32) *Interface {
	for i := range t.intfs {
		if t.intfs[i].IP == ip {
			return &t.intfs[i]
		}
	}
	return nil
}

// IsLocal checks if ip is the address of one of the router's interfaces
func (t *InterfaceTable) IsLocal(ip uint32) bool {
	return t.FindInterfaceByIP(ip) != nil
}

// All returns a copy of the interface list in configuration order
func (t *InterfaceTable) All() []Interface {
	out := make([]Interface, len(t.intfs))
	copy(out, t.intfs)
	return out
}
