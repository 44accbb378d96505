package ingest

import (
	"fmt"
	"net"
	"syscall"
	"time"
)

// DefaultReadBuffer fits any line the node sends with plenty of headroom.
const DefaultReadBuffer = 2048

// UDPSource reads telemetry datagrams from a bound UDP socket without
// blocking. It is owned by a single ingestion loop.
type UDPSource struct {
	conn    *net.UDPConn
	raw     syscall.RawConn
	maxSize int
	// buf has one byte more than maxSize so an oversized datagram shows up
	// as a full read instead of being cut silently.
	buf []byte
	now func() time.Time
}

// ListenUDP binds addr (e.g. "0.0.0.0:5005"). Bind failures are returned
// as-is so the caller can abort startup.
func ListenUDP(addr string, readBuffer int) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("udp raw conn: %w", err)
	}
	if readBuffer <= 0 {
		readBuffer = DefaultReadBuffer
	}
	return &UDPSource{
		conn:    conn,
		raw:     raw,
		maxSize: readBuffer,
		buf:     make([]byte, readBuffer+1),
		now:     time.Now,
	}, nil
}

func (s *UDPSource) Receive() (Datagram, bool, error) {
	n, from, ok, err := s.recv(s.buf)
	if err != nil || !ok {
		return Datagram{}, false, err
	}
	truncated := n > s.maxSize
	if truncated {
		n = s.maxSize
	}
	payload := make([]byte, n)
	copy(payload, s.buf[:n])
	return Datagram{Payload: payload, From: from, At: s.now(), Truncated: truncated}, true, nil
}

func (s *UDPSource) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSource) Close() error {
	return s.conn.Close()
}
