package config

import (
	"errors"
	"os"
	"strings"

	pstrings "quorum/pkg/platform/strings"
)

// Server captures process-level configuration for the governance gateway.
type Server struct {
	Addr          string
	JWTSigningKey string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	AuditTopic    string
	Owner         string
	Arbitrator    string
}

// FromEnv builds a Server config from environment variables so main stays
// lean. Empty DatabaseURL/RedisURL/KafkaBrokers select the in-memory
// equivalents; the state-transition core behaves identically either way.
// A set DATABASE_URL marks the deployment as persistent, and a persistent
// deployment must bring its own JWT_SIGNING_KEY; the development fallback
// key is only accepted alongside in-memory state.
func FromEnv() (Server, error) {
	addr := os.Getenv("QUORUM_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		if databaseURL != "" {
			return Server{}, errors.New("JWT_SIGNING_KEY is required when DATABASE_URL is set")
		}
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = pstrings.DedupeAndTrim(strings.Split(raw, ","))
	}

	topic := os.Getenv("AUDIT_TOPIC")
	if topic == "" {
		topic = "quorum.audit"
	}

	owner := os.Getenv("QUORUM_OWNER")
	if owner == "" {
		owner = "owner"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   databaseURL,
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  brokers,
		AuditTopic:    topic,
		Owner:         owner,
		Arbitrator:    os.Getenv("QUORUM_ARBITRATOR"),
	}, nil
}
