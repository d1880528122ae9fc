// Package config holds the proxy's validated runtime configuration.
package config

import (
	"fmt"
	"time"
)

// MultiplexingMode controls when a client is moved off the shared
// upstream connections onto a private one (spec.md §4.4).
type MultiplexingMode string

const (
	MultiplexingNever  MultiplexingMode = "never"
	MultiplexingAuto   MultiplexingMode = "auto"
	MultiplexingAlways MultiplexingMode = "always"
)

// LogLevel mirrors the --log-level flag's accepted values.
type LogLevel string

const (
	LogDebug   LogLevel = "debug"
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

const (
	DefaultPort          = 7777
	DefaultMaxClients    = 10000
	DefaultThreads       = 8
	MinThreads           = 1
	MaxThreads           = 500
	DefaultTCPKeepAlive  = 15 * time.Second
	DefaultBacklog       = 512
	MaxAcceptsPerTick    = 1000
	MultiplexingMaxQueue = 5
	ArgVectorGrow        = 10
	DefaultMaxPending    = 1000
)

// Config is the fully validated, immutable-after-boot configuration used
// by every downstream package. Nothing below this struct ever talks to
// Viper or Cobra directly.
type Config struct {
	Seed string // host:port of the cluster bootstrap seed

	Port              int
	MaxClients        int
	Threads           int
	TCPKeepAlive      time.Duration
	Backlog           int
	Daemonize         bool
	Multiplexing      MultiplexingMode
	Auth              string
	DisableColors     bool
	LogLevel          LogLevel
	DumpQueries       bool
	DumpBuffer        bool
	MaxPendingPerConn int
}

// Default returns a Config populated with the proxy's defaults; callers
// overlay flag/env values on top of it.
func Default() Config {
	return Config{
		Port:              DefaultPort,
		MaxClients:        DefaultMaxClients,
		Threads:           DefaultThreads,
		TCPKeepAlive:      DefaultTCPKeepAlive,
		Backlog:           DefaultBacklog,
		Multiplexing:      MultiplexingAuto,
		LogLevel:          LogInfo,
		MaxPendingPerConn: DefaultMaxPending,
	}
}

// Validate checks invariants the rest of the proxy assumes hold for the
// lifetime of the process. It never mutates c.
func (c Config) Validate() error {
	if c.Seed == "" {
		return fmt.Errorf("config: missing cluster seed address")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	// Negative thread counts are the source's sign-flip bug surface
	// (spec.md §9 open question); reject them outright instead of
	// reinterpreting the sign.
	if c.Threads < MinThreads || c.Threads > MaxThreads {
		return fmt.Errorf("config: threads must be in [%d,%d], got %d", MinThreads, MaxThreads, c.Threads)
	}
	if c.MaxClients < 1 {
		return fmt.Errorf("config: maxclients must be positive, got %d", c.MaxClients)
	}
	switch c.Multiplexing {
	case MultiplexingNever, MultiplexingAuto, MultiplexingAlways:
	default:
		return fmt.Errorf("config: invalid --disable-multiplexing value %q", c.Multiplexing)
	}
	switch c.LogLevel {
	case LogDebug, LogInfo, LogSuccess, LogWarning, LogError:
	default:
		return fmt.Errorf("config: invalid --log-level value %q", c.LogLevel)
	}
	if c.MaxPendingPerConn < 1 {
		return fmt.Errorf("config: maxpendingperconn must be positive, got %d", c.MaxPendingPerConn)
	}
	return nil
}
