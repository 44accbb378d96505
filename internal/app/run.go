package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"riego-dashboard/internal/config"
	"riego-dashboard/internal/dashboard"
	"riego-dashboard/internal/dashboard/store"
	"riego-dashboard/internal/dashboard/stream"
	dashboardviews "riego-dashboard/internal/dashboard/views"
	"riego-dashboard/internal/httpapi"
	"riego-dashboard/internal/ingest"
	"riego-dashboard/internal/metrics"
	"riego-dashboard/internal/mqtt"
)

// Run serves the dashboard and drives the ingestion loop until ctx is done
// or either of them fails.
func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"udpAddr", cfg.UDPAddr,
		"udpReadBuffer", cfg.UDPReadBuffer,
		"pollInterval", cfg.PollInterval,
		"maxPerCycle", cfg.MaxPerCycle,
		"windowSize", cfg.WindowSize,
		"logScrollback", cfg.LogScrollback,
		"staleAfter", cfg.StaleAfter,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
	)

	gauges, err := cfg.GaugeSpecs()
	if err != nil {
		return err
	}
	if err := dashboardviews.LoadTemplates(); err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	src, err := ingest.ListenUDP(cfg.UDPAddr, cfg.UDPReadBuffer)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Error("udp close", "error", err)
		}
	}()
	logger.Info("udp listening", "addr", src.LocalAddr().String())

	st := store.New(cfg.WindowSize, cfg.LogScrollback)
	hub := stream.NewHub(logger)
	m := metrics.New(cfg.WindowSize)
	observers := ingest.Observers{st, m, hub}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		mqttClient = mqtt.NewClient(cfg, logger)
		fwd := mqtt.NewForwarder(mqttClient, mqtt.ForwarderOptions{
			TopicPrefix: cfg.MQTTTopicPrefix,
			Logger:      logger,
		})
		registerForwarderMetrics(m.Registry(), fwd)
		observers = append(observers, fwd)

		go func() {
			// The dashboard works without a broker; readings are dropped by
			// the forwarder until the connection is up.
			if err := mqttClient.Connect(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
			}
		}()
		go func() { _ = fwd.Run(runCtx) }()
	}

	poller := ingest.NewPoller(src, ingest.Options{
		WindowSize:  cfg.WindowSize,
		MaxPerCycle: cfg.MaxPerCycle,
		Gauges:      gauges,
		Observer:    observers,
		Logger:      logger,
	})

	mux := httpapi.NewMux(st, cfg.StaleAfter, m.Handler())
	dashboard.RegisterFeature(mux, st, hub)
	srv := httpapi.NewServer(cfg, mux, logger)

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		httpErr <- srv.ListenAndServe()
	}()

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- poller.Run(runCtx, cfg.PollInterval)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
		httpErr <- nil
	case err := <-pollErr:
		runErr = err
		pollErr <- nil
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := <-pollErr; err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
		runErr = err
	}

	hub.Close()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) && runErr == nil {
		runErr = err
	}

	if mqttClient != nil {
		logger.Info("mqtt disconnecting")
		mqttClient.Disconnect()
	}

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

func registerForwarderMetrics(reg prometheus.Registerer, fwd *mqtt.Forwarder) {
	stat := func(pick func(published, dropped, failed uint64) uint64) func() float64 {
		return func() float64 { return float64(pick(fwd.Stats())) }
	}
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "riego",
			Name:      "mqtt_published_total",
			Help:      "Messages acknowledged by the MQTT broker.",
		}, stat(func(p, _, _ uint64) uint64 { return p })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "riego",
			Name:      "mqtt_dropped_total",
			Help:      "Messages dropped because the queue was full or the breaker was open.",
		}, stat(func(_, d, _ uint64) uint64 { return d })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "riego",
			Name:      "mqtt_failed_total",
			Help:      "Messages the broker did not accept.",
		}, stat(func(_, _, f uint64) uint64 { return f })),
	)
}
