//go:build unix

package ingest

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// recv performs a single recvfrom with MSG_DONTWAIT. The callback always
// reports done, so the runtime poller never parks the goroutine.
func (s *UDPSource) recv(buf []byte) (n int, from net.Addr, ok bool, err error) {
	var (
		sa   unix.Sockaddr
		rerr error
	)
	err = s.raw.Read(func(fd uintptr) bool {
		n, sa, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return 0, nil, false, err
	}
	if rerr != nil {
		if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) || errors.Is(rerr, unix.EINTR) {
			return 0, nil, false, nil
		}
		return 0, nil, false, os.NewSyscallError("recvfrom", rerr)
	}
	return n, sockaddrToUDP(sa), true, nil
}

func sockaddrToUDP(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	default:
		return nil
	}
}
