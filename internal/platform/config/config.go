package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN is empty when running on in-memory stores.
	PostgresDSN string

	Redis RedisConfig

	// KafkaBrokers is empty when the audit relay is disabled.
	KafkaBrokers []string
	AuditTopic   string

	SweepInterval time.Duration
	LookupTimeout time.Duration
	RelayInterval time.Duration
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis
// and with it the cross-instance sweep lease.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CUSTODIAN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "custodian.audit"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:  brokers,
		AuditTopic:    auditTopic,
		SweepInterval: durationEnv("SWEEP_INTERVAL", time.Hour),
		LookupTimeout: durationEnv("LOOKUP_TIMEOUT", 2*time.Second),
		RelayInterval: durationEnv("RELAY_INTERVAL", 5*time.Second),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
