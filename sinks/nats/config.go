package natsx

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultStream      = "DEX"
	DefaultSubjectRoot = "dex.sol"

	defaultPublishTimeout = 5 * time.Second

	envURL            = "NATS_URL"
	envStream         = "NATS_STREAM"
	envSubjectRoot    = "NATS_SUBJECT_ROOT"
	envPublishTimeout = "NATS_PUBLISH_TIMEOUT"
	envEnsureStream   = "NATS_ENSURE_STREAM"
)

// Config says where price updates go. Prices land on
// "<SubjectRoot>.price.<program_kind>" inside Stream.
type Config struct {
	URL            string
	Stream         string
	SubjectRoot    string
	PublishTimeout time.Duration
	// EnsureStream creates Stream over "<SubjectRoot>.>" when it does not exist.
	EnsureStream bool
}

func DefaultConfig() Config {
	return Config{
		Stream:         DefaultStream,
		SubjectRoot:    DefaultSubjectRoot,
		PublishTimeout: defaultPublishTimeout,
	}
}

func (c Config) Validate() error {
	switch {
	case c.URL == "":
		return errors.New("nats url is required")
	case c.Stream == "":
		return errors.New("nats stream is required")
	case c.PublishTimeout <= 0:
		return errors.New("publish timeout must be positive")
	}
	return validSubjectRoot(c.SubjectRoot)
}

// validSubjectRoot rejects roots that would turn price subjects into wildcards
// or leave empty tokens.
func validSubjectRoot(root string) error {
	if root == "" {
		return errors.New("subject root is required")
	}
	if strings.ContainsAny(root, "*> \t") {
		return fmt.Errorf("subject root %q must be a literal subject", root)
	}
	for _, token := range strings.Split(root, ".") {
		if token == "" {
			return fmt.Errorf("subject root %q has an empty token", root)
		}
	}
	return nil
}

// FromEnv reads NATS_URL, NATS_STREAM, NATS_SUBJECT_ROOT, NATS_PUBLISH_TIMEOUT
// (a duration such as "750ms") and NATS_ENSURE_STREAM over the defaults.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.URL = os.Getenv(envURL)
	if v := os.Getenv(envStream); v != "" {
		cfg.Stream = v
	}
	if v := os.Getenv(envSubjectRoot); v != "" {
		cfg.SubjectRoot = v
	}
	if v := os.Getenv(envPublishTimeout); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envPublishTimeout, err)
		}
		cfg.PublishTimeout = timeout
	}
	if v := os.Getenv(envEnsureStream); v != "" {
		ensure, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envEnsureStream, err)
		}
		cfg.EnsureStream = ensure
	}
	return cfg, cfg.Validate()
}
