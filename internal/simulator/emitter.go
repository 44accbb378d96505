package simulator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

type EmitOptions struct {
	Interval time.Duration
	// Count stops after that many datagrams; 0 means until ctx is done.
	Count  int
	Logger *slog.Logger
}

// Emit writes one generated line per interval to w, each as its own Write
// so that a UDP connection sends one datagram per line.
func Emit(ctx context.Context, w io.Writer, g *Generator, opts EmitOptions) (sent int, err error) {
	if opts.Interval <= 0 {
		return 0, fmt.Errorf("emit interval must be positive, got %v", opts.Interval)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		line := g.Line()
		if _, err := io.WriteString(w, line); err != nil {
			return sent, fmt.Errorf("send datagram: %w", err)
		}
		sent++
		opts.Logger.Debug("datagram sent", "line", line, "n", sent)
		if opts.Count > 0 && sent >= opts.Count {
			return sent, nil
		}

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DialUDP connects a UDP socket to target for Emit.
func DialUDP(target string) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", target, err)
	}
	return conn, nil
}
