package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"riego-dashboard/internal/telemetry"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// UDPAddr is where the sensor node sends its datagrams.
	UDPAddr       string
	UDPReadBuffer int
	PollInterval  time.Duration
	MaxPerCycle   int
	WindowSize    int
	LogScrollback int
	// StaleAfter is how long /healthz tolerates no completed poll cycle.
	StaleAfter time.Duration

	GaugeTankMax int
	GaugeTempMax int

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := envString("HTTP_ADDR", ":8080")
	udpAddr := envString("UDP_ADDR", "0.0.0.0:5005")

	udpReadBuffer, err := envPositiveInt("UDP_READ_BUFFER", 2048)
	if err != nil {
		return Config{}, err
	}

	pollInterval, err := envPositiveDuration("POLL_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return Config{}, err
	}

	maxPerCycle, err := envPositiveInt("POLL_MAX_PER_CYCLE", 1024)
	if err != nil {
		return Config{}, err
	}

	windowSize, err := envPositiveInt("WINDOW_SIZE", telemetry.WindowSize)
	if err != nil {
		return Config{}, err
	}

	logScrollback, err := envPositiveInt("LOG_SCROLLBACK", 1000)
	if err != nil {
		return Config{}, err
	}

	staleAfter, err := envPositiveDuration("STALE_AFTER", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	// Gauge maxima are checked by telemetry.NewGaugeSpec; here they only
	// have to be integers.
	gaugeTankMax, err := envInt("GAUGE_TANK_MAX", telemetry.TankMax)
	if err != nil {
		return Config{}, err
	}
	gaugeTempMax, err := envInt("GAUGE_TEMP_MAX", telemetry.TemperatureMax)
	if err != nil {
		return Config{}, err
	}

	mqttEnabledStr := envString("MQTT_ENABLED", "false")
	mqttEnabled, err := strconv.ParseBool(mqttEnabledStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_ENABLED %q: %w", mqttEnabledStr, err)
	}

	mqttBroker := envString("MQTT_BROKER", "localhost")
	mqttPort, err := envPositiveInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttClientID := envString("MQTT_CLIENT_ID", "")
	mqttTopicPrefix := strings.Trim(envString("MQTT_TOPIC_PREFIX", "riego"), "/")
	if mqttTopicPrefix == "" {
		return Config{}, fmt.Errorf("invalid MQTT_TOPIC_PREFIX %q: empty after trimming", os.Getenv("MQTT_TOPIC_PREFIX"))
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        httpAddr,
		UDPAddr:         udpAddr,
		UDPReadBuffer:   udpReadBuffer,
		PollInterval:    pollInterval,
		MaxPerCycle:     maxPerCycle,
		WindowSize:      windowSize,
		LogScrollback:   logScrollback,
		StaleAfter:      staleAfter,
		GaugeTankMax:    gaugeTankMax,
		GaugeTempMax:    gaugeTempMax,
		MQTTEnabled:     mqttEnabled,
		MQTTBroker:      mqttBroker,
		MQTTPort:        mqttPort,
		MQTTClientID:    mqttClientID,
		MQTTTopicPrefix: mqttTopicPrefix,
	}, nil
}

// GaugeSpecs builds the tank and temperature gauges. A non-positive maximum
// is a configuration error and must stop startup.
func (c Config) GaugeSpecs() ([]telemetry.GaugeSpec, error) {
	tank, err := telemetry.NewGaugeSpec(telemetry.GaugeTank, telemetry.FieldTank, c.GaugeTankMax)
	if err != nil {
		return nil, fmt.Errorf("GAUGE_TANK_MAX: %w", err)
	}
	temp, err := telemetry.NewGaugeSpec(telemetry.GaugeTemperature, telemetry.FieldTemperature, c.GaugeTempMax)
	if err != nil {
		return nil, fmt.Errorf("GAUGE_TEMP_MAX: %w", err)
	}
	return []telemetry.GaugeSpec{tank, temp}, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envPositiveInt(key string, def int) (int, error) {
	n, err := envInt(key, def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func envPositiveDuration(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
