package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/tcpnet/tcp"
)

const (
	envPrefix = "TCPNET_"

	defaultHost = "127.0.0.1"
	defaultPort = 7000
)

// config is the environment-derived configuration. Command flags override
// it field by field.
type config struct {
	LogLevel       string
	Development    bool
	Host           string
	Port           int
	AdminAddr      string
	MaxConnections int
	DropPolicy     tcp.DropPolicy
	Block          []string
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
}

func defaultConfig() config {
	return config{
		LogLevel:       "info",
		Host:           defaultHost,
		Port:           defaultPort,
		ConnectTimeout: 10 * time.Second,
	}
}

// loadConfig reads envFile when it exists, then TCPNET_* variables from the
// process environment. A missing file is not an error.
func loadConfig(envFile string) (config, []string, error) {
	var warnings []string
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return config{}, nil, err
			}
			warnings = append(warnings, "no "+envFile+" file found, using the process environment")
		}
	}

	cfg := defaultConfig()
	var errs []error

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("DEV"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, envError("DEV", v, err))
		}
		cfg.Development = b
	}
	if v := getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			errs = append(errs, envError("PORT", v, err))
		} else {
			cfg.Port = port
		}
	}
	cfg.AdminAddr = getenv("ADMIN_ADDR")
	if v := getenv("MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, envError("MAX_CONNECTIONS", v, err))
		} else {
			cfg.MaxConnections = n
		}
	}
	if v := getenv("DROP_POLICY"); v != "" {
		p, err := parseDropPolicy(v)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.DropPolicy = p
	}
	if v := getenv("BLOCK"); v != "" {
		cfg.Block = splitList(v)
	}
	if v := getenv("CONNECT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, envError("CONNECT_TIMEOUT", v, err))
		} else {
			cfg.ConnectTimeout = d
		}
	}
	if v := getenv("IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, envError("IDLE_TIMEOUT", v, err))
		} else {
			cfg.IdleTimeout = d
		}
	}

	return cfg, warnings, multierr.Combine(errs...)
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func envError(key, value string, err error) error {
	if err == nil {
		return errors.New(envPrefix + key + ": invalid value " + strconv.Quote(value))
	}
	return errors.New(envPrefix + key + ": invalid value " + strconv.Quote(value) + ": " + err.Error())
}

func parseDropPolicy(s string) (tcp.DropPolicy, error) {
	switch strings.ToLower(s) {
	case "", "destroy":
		return tcp.DropDestroy, nil
	case "defer":
		return tcp.DropDefer, nil
	default:
		return tcp.DropDestroy, errors.New("unknown drop policy " + strconv.Quote(s))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// newLogger builds a production logger, or a development one when dev is
// set, at the named level.
func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
