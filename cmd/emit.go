package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"riego-dashboard/internal/simulator"
)

var emitFlags struct {
	target    string
	interval  time.Duration
	count     int
	malformed float64
	seed      uint64
}

var emitCmd = &cobra.Command{
	Use:          "emit",
	Short:        "Send simulated sensor datagrams to a dashboard",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := setupLogger(); err != nil {
			return err
		}
		if emitFlags.malformed < 0 || emitFlags.malformed > 1 {
			return errors.New("--malformed must be between 0 and 1")
		}

		conn, err := simulator.DialUDP(emitFlags.target)
		if err != nil {
			return err
		}
		defer conn.Close()

		seed := emitFlags.seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		g := simulator.NewGenerator(seed)
		g.MalformedRatio = emitFlags.malformed

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("emitting",
			"target", emitFlags.target,
			"interval", emitFlags.interval,
			"count", emitFlags.count,
			"malformed", emitFlags.malformed,
			"seed", seed,
		)
		sent, err := simulator.Emit(ctx, conn, g, simulator.EmitOptions{
			Interval: emitFlags.interval,
			Count:    emitFlags.count,
			Logger:   slog.Default(),
		})
		slog.Info("emitter stopped", "sent", sent)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	f := emitCmd.Flags()
	f.StringVar(&emitFlags.target, "target", "127.0.0.1:5005", "UDP address of the dashboard")
	f.DurationVar(&emitFlags.interval, "interval", time.Second, "delay between datagrams")
	f.IntVar(&emitFlags.count, "count", 0, "datagrams to send, 0 for no limit")
	f.Float64Var(&emitFlags.malformed, "malformed", 0, "fraction of datagrams with a corrupted value")
	f.Uint64Var(&emitFlags.seed, "seed", 0, "random seed, 0 picks one from the clock")
	rootCmd.AddCommand(emitCmd)
}
