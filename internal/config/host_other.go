//go:build !linux

package config

import (
	"fmt"

	"go-ip-router/internal/router"
)

// FromHost is only available on linux
func FromHost(names []string) ([]router.Interface, *router.RoutingTable, error) {
	return nil, nil, fmt.Errorf("host import is not supported on this platform")
}
