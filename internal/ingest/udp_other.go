//go:build !unix

package ingest

import (
	"errors"
	"net"
	"os"
	"time"
)

// recv approximates a non-blocking read with a one millisecond deadline; an
// already expired deadline would fail before looking at the socket.
func (s *UDPSource) recv(buf []byte) (int, net.Addr, bool, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, nil, false, err
	}
	n, from, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil, false, nil
		}
		if isMessageTooLong(err) {
			// The buffer holds the first bytes; report it full so Receive
			// flags the datagram as truncated.
			return len(buf), from, true, nil
		}
		return 0, nil, false, err
	}
	return n, from, true, nil
}
