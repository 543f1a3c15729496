package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Event backends.
const (
	EventsDisabled = ""
	EventsRedis    = "redis"
	EventsNATS     = "nats"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per request, must cover the CPU sample and probes

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Probes
	ServicesFile string        // optional yaml list of monitored services (empty = built-in list)
	AgentService string        // identifier reported as agent_status (empty = provisioned package)
	CPUSample    time.Duration // CPU sampling window (default: 1s)
	DiskPath     string        // filesystem reported as disk usage (default: /)

	// Executor
	ExecTimeout      time.Duration // bound for a single command (default: 30s)
	PrivilegeCommand []string      // prefix for privileged commands (default: sudo -n)

	// Provisioning
	ProvisionTimeout  time.Duration // bound for one installer run (default: 15m)
	ProvisionPackage  string        // package removed before install
	ProvisionSetupURL string        // exported to the installer as PIMON_SETUP_URL
	ProvisionPort     int           // port of the provisioning URL
	Installer         []string      // installer argv (empty = built-in script)

	// Events
	EventsBackend string // "" | "redis" | "nats"
	EventsSubject string // redis channel or nats subject
	NATSURL       string

	// Redis (events backend)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt

	// Control route hygiene
	AllowedCIDRS []string // optional, restrict control routes to these networks
	TrustProxy   bool     // true => trust X-Forwarded-For headers
	RateLimit    float64  // control requests per second per client IP
	RateBurst    int
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("PIMON_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("PIMON_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("PIMON_REQUEST_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel:  getenv("PIMON_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PIMON_PRETTY_LOG", false),

		// Probes
		ServicesFile: getenv("PIMON_SERVICES_FILE", ""),
		AgentService: getenv("PIMON_AGENT_SERVICE", ""),
		CPUSample:    mustDuration("PIMON_CPU_SAMPLE", time.Second),
		DiskPath:     getenv("PIMON_DISK_PATH", "/"),

		// Executor
		ExecTimeout:      mustDuration("PIMON_EXEC_TIMEOUT", 30*time.Second),
		PrivilegeCommand: strings.Fields(getenvAllowEmpty("PIMON_PRIVILEGE_CMD", "sudo -n")),

		// Provisioning
		ProvisionTimeout:  mustDuration("PIMON_PROVISION_TIMEOUT", 15*time.Minute),
		ProvisionPackage:  getenv("PIMON_PROVISION_PACKAGE", "3cxsbc"),
		ProvisionSetupURL: getenv("PIMON_PROVISION_SETUP_URL", ""),
		ProvisionPort:     getenvInt("PIMON_PROVISION_PORT", 5001),
		Installer:         strings.Fields(getenv("PIMON_INSTALLER", "")),

		// Events
		EventsBackend: strings.ToLower(getenv("PIMON_EVENTS_BACKEND", EventsDisabled)),
		EventsSubject: getenv("PIMON_EVENTS_SUBJECT", "pimon.events"),
		NATSURL:       getenv("PIMON_NATS_URL", "nats://127.0.0.1:4222"),

		// Redis settings
		RedisAddr:           getenv("PIMON_REDIS_ADDR", ""),
		RedisUser:           getenv("PIMON_REDIS_USERNAME", ""),
		RedisPassword:       getenv("PIMON_REDIS_PASSWORD", ""),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("PIMON_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("PIMON_TRUST_PROXY", false),
		RateLimit:    getenvFloat("PIMON_RATE_LIMIT", 2),
		RateBurst:    getenvInt("PIMON_RATE_BURST", 10),
	}

	switch cfg.EventsBackend {
	case EventsDisabled, EventsNATS:
	case EventsRedis:
		cfg.RedisAddr = requireEnv("PIMON_REDIS_ADDR")
		cfg.RedisDB = requireEnvInt("PIMON_REDIS_DB")
	default:
		panic(fmt.Sprintf("❌ FATAL: PIMON_EVENTS_BACKEND must be empty, %q or %q, got %q",
			EventsRedis, EventsNATS, cfg.EventsBackend))
	}

	if cfg.RequestTimeout <= cfg.CPUSample {
		panic(fmt.Sprintf("❌ FATAL: PIMON_REQUEST_TIMEOUT (%s) must exceed PIMON_CPU_SAMPLE (%s)",
			cfg.RequestTimeout, cfg.CPUSample))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvAllowEmpty distinguishes unset (default) from explicitly empty.
func getenvAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
