package otnet

import (
	"net"
	"net/netip"

	"github.com/packetloom/otmp/pkg/otproto"
)

// localIPv4 returns the primary local IPv4 address the OS routing table
// would pick for outbound traffic, by dialing a UDP "connection" (no packets
// are actually sent for UDP dial) to a public address and reading back the
// local endpoint it was bound to.
func localIPv4() (netip.Addr, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return netip.Addr{}, otproto.ErrLocalIPNotFound
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, otproto.ErrLocalIPNotFound
	}
	a, ok := netip.AddrFromSlice(addr.IP.To4())
	if !ok {
		return netip.Addr{}, otproto.ErrLocalIPNotFound
	}
	return a, nil
}

// broadcastAddr resolves the IPv4 broadcast address for the LAN segment
// hosting the machine's primary local IP, on port. This is recomputed per
// send rather than cached at bind time, since the primary interface/address
// can change while the task is running (e.g. a laptop switching networks).
func broadcastAddr(port uint16) (netip.AddrPort, error) {
	local, err := localIPv4()
	if err != nil {
		return netip.AddrPort{}, err
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return netip.AddrPort{}, err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			addr, ok := netip.AddrFromSlice(ip4)
			if !ok || addr != local {
				continue
			}
			bc := broadcastFromMask(ip4, ipnet.Mask)
			return netip.AddrPortFrom(bc, port), nil
		}
	}
	return netip.AddrPort{}, otproto.ErrBroadcastAddressNotFound
}

func broadcastFromMask(ip net.IP, mask net.IPMask) netip.Addr {
	bc := make(net.IP, len(ip))
	for i := range ip {
		bc[i] = ip[i] | ^mask[i]
	}
	addr, _ := netip.AddrFromSlice(bc)
	return addr
}

// localAddrSet collects every unicast IP address bound to a local interface,
// used to recognize and suppress a host's own broadcast packets looping
// back to itself.
func localAddrSet() (map[netip.Addr]struct{}, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	set := make(map[netip.Addr]struct{}, len(addrs))
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(ipnet.IP); ok {
			set[addr.Unmap()] = struct{}{}
		}
	}
	return set, nil
}
