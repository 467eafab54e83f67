package qscan

import "net/netip"

// sockIter is a lazy cursor over the cross product of ports and hosts.
// Ports are the outer dimension so consecutive endpoints stride across
// hosts instead of hammering one host with every port in a row. The
// cursor borrows the two slices and keeps only an index pair, so the
// full product is never materialized.
type sockIter struct {
	ips     []netip.Addr
	ports   []uint16
	portIdx int
	ipIdx   int
}

func newSockIter(ips []netip.Addr, ports []uint16) *sockIter {
	return &sockIter{ips: ips, ports: ports}
}

// Next returns the next endpoint, or false when the product is exhausted.
func (it *sockIter) Next() (netip.AddrPort, bool) {
	if it.portIdx >= len(it.ports) || len(it.ips) == 0 {
		return netip.AddrPort{}, false
	}

	sock := netip.AddrPortFrom(it.ips[it.ipIdx], it.ports[it.portIdx])

	it.ipIdx++
	if it.ipIdx == len(it.ips) {
		it.ipIdx = 0
		it.portIdx++
	}

	return sock, true
}
