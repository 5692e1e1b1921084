package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go-ip-router/internal/router"
)

// LoadRoutingTable reads a routing table in the classic rtable layout: one
// route per line as
//
//	destination gateway mask interface
//
// with dotted-quad addresses. Blank lines and text after '#' are ignored.
func LoadRoutingTable(filename string) (*router.RoutingTable, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open routing table %s: %w", filename, err)
	}
	defer f.Close()

	rt, err := ParseRoutingTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return rt, nil
}

// ParseRoutingTable parses the rtable layout from r
func ParseRoutingTable(r io.Reader) (*router.RoutingTable, error) {
	rt := router.InitRoutingTable()
	scanner := bufio.NewScanner(r)

	line_no := 0
	for scanner.Scan() {
		line_no++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 fields, got %d", line_no, len(fields))
		}

		var addrs [3]uint32
		for i, field := range fields[:3] {
			ip, err := router.IPStringToUint32(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line_no, err)
			}
			addrs[i] = ip
		}

		if err := rt.AddRoute(addrs[0], addrs[2], addrs[1], fields[3]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line_no, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return rt, nil
}
