package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Store backends
const (
	BackendDynamo = "dynamo"
	BackendMemory = "memory"
)

// Config holds the server settings read from the environment.
type Config struct {
	Port         int    `envconfig:"PORT" default:"8080"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"dynamo"`

	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	DynamoEndpoint     string `envconfig:"DYNAMO_ENDPOINT"`
	MembersTable       string `envconfig:"MEMBERS_TABLE" default:"Members"`
	ConversationsTable string `envconfig:"CONVERSATIONS_TABLE" default:"Conversations"`
	MessagesTable      string `envconfig:"MESSAGES_TABLE" default:"ConversationMessages"`
	ClaimAuditTable    string `envconfig:"CLAIM_AUDIT_TABLE" default:"SkillClaimAudit"`
	RatingsTable       string `envconfig:"RATINGS_TABLE" default:"MemberRatings"`

	EvidenceBucket string        `envconfig:"EVIDENCE_BUCKET"`
	PresignTTL     time.Duration `envconfig:"PRESIGN_TTL" default:"5m"`

	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	HandshakeResetAfterDecision bool `envconfig:"HANDSHAKE_RESET_AFTER_DECISION" default:"false"`
	MaxPartners                 int  `envconfig:"MAX_PARTNERS" default:"2"`

	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

// Load reads an optional .env file and then the environment. A missing .env is not an error;
// variables already set in the environment win over the file.
func Load(cfg *Config, envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read env file: %w", err)
	}
	if err := envconfig.Process("", cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendDynamo, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendDynamo, BackendMemory, c.StoreBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger builds the production JSON logger at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
