// Package remoteaccess computes the client-side artifacts an operator needs
// to reach the stack's canonical hostnames from another machine on the LAN.
// It performs no network I/O of its own beyond inspecting local interfaces.
package remoteaccess

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// Plan is the full set of artifacts produced for one server address.
type Plan struct {
	ServerAddress        string
	Hostnames            []string
	PosixHostsFragment   string
	WindowsHostsFragment string
	DNSZoneFragment      string
	Instructions         string
}

// Compute computes the remote-access artifacts for serverAddress and hostnames.
// If serverAddress is empty, it is auto-detected from the host's own network
// interfaces.
func Compute(serverAddress string, hostnames []string) (Plan, error) {
	address := serverAddress
	if address == "" {
		detected, err := detectServerAddress()
		if err != nil {
			return Plan{}, fmt.Errorf("remoteaccess: %w", err)
		}
		address = detected
	}

	sorted := make([]string, len(hostnames))
	copy(sorted, hostnames)
	sort.Strings(sorted)

	return Plan{
		ServerAddress:        address,
		Hostnames:            sorted,
		PosixHostsFragment:   hostsFragment(address, sorted),
		WindowsHostsFragment: hostsFragment(address, sorted),
		DNSZoneFragment:      dnsZoneFragment(address, sorted),
		Instructions:         instructions(address),
	}, nil
}

func hostsFragment(address string, hostnames []string) string {
	var b strings.Builder
	for _, h := range hostnames {
		fmt.Fprintf(&b, "%s\t%s\n", address, h)
	}
	return b.String()
}

func dnsZoneFragment(address string, hostnames []string) string {
	var b strings.Builder
	for _, h := range hostnames {
		fmt.Fprintf(&b, "%s. IN A %s\n", h, address)
	}
	return b.String()
}

func instructions(address string) string {
	return strings.Join([]string{
		"POSIX (Linux/macOS): append the hosts fragment to /etc/hosts (requires sudo/root).",
		fmt.Sprintf("Windows: append the hosts fragment to %%SystemRoot%%\\System32\\drivers\\etc\\hosts (requires an elevated editor). Server address: %s.", address),
		"DNS server: load the zone fragment as independent A records in your resolver's authoritative zone.",
	}, "\n")
}

// detectServerAddress picks the first non-loopback IPv4 address bound to an
// interface that is up, tie-broken deterministically by interface name.
func detectServerAddress() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list network interfaces: %w", err)
	}

	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].Name < ifaces[j].Name })

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}

	return "", fmt.Errorf("no non-loopback IPv4 address found on any up interface")
}
