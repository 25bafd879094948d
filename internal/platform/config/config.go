package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultSMSCountryPrefix = "+91"
	defaultSMTPPort         = 587
	defaultEventsTopic      = "order-events"

	secretRefPrefix = "sm://"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	Firebase  FirebaseConfig
	Razorpay  RazorpayConfig
	SMS       SMSConfig
	SMTP      SMTPConfig
	Events    EventsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// FirebaseConfig stores Firebase project settings used for admin authentication.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// RazorpayConfig holds the payment gateway credentials. KeySecret may be
// supplied as a Secret Manager reference (sm://...) resolved at load time.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

// SMSConfig configures the transactional SMS provider.
type SMSConfig struct {
	Endpoint      string
	AuthKey       string
	SenderID      string
	CountryPrefix string
}

// SMTPConfig configures templated transactional email.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// EventsConfig names the Pub/Sub topic used for domain event fan-out.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to the SecretResolver interface.
type SecretResolverFunc func(ctx context.Context, ref string) (string, error)

// Resolve implements SecretResolver.
func (f SecretResolverFunc) Resolve(ctx context.Context, ref string) (string, error) {
	if f == nil {
		return "", errors.New("config: secret resolver not configured")
	}
	return f(ctx, ref)
}

type loadOptions struct {
	envFile  string
	resolver SecretResolver
}

// Option customises configuration loading.
type Option func(*loadOptions)

// WithEnvFile overrides the .env file consulted before the process environment.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// WithSecretResolver installs a resolver for sm:// secret references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loadOptions) {
		o.resolver = resolver
	}
}

// Load reads configuration from the environment, optionally seeded from a
// .env file, resolving secret references through the installed resolver.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loadOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	fileValues, err := readEnvFile(options.envFile)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         valueOrDefault(lookup("PORT"), defaultPort),
			ReadTimeout:  durationOrDefault(lookup("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationOrDefault(lookup("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationOrDefault(lookup("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    lookup("FIRESTORE_PROJECT_ID"),
			EmulatorHost: lookup("FIRESTORE_EMULATOR_HOST"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       lookup("FIREBASE_PROJECT_ID"),
			CredentialsFile: lookup("FIREBASE_CREDENTIALS_FILE"),
		},
		Razorpay: RazorpayConfig{
			KeyID:     lookup("RAZORPAY_KEY_ID"),
			KeySecret: lookup("RAZORPAY_KEY_SECRET"),
		},
		SMS: SMSConfig{
			Endpoint:      lookup("SMS_ENDPOINT"),
			AuthKey:       lookup("SMS_AUTH_KEY"),
			SenderID:      lookup("SMS_SENDER_ID"),
			CountryPrefix: valueOrDefault(lookup("SMS_COUNTRY_PREFIX"), defaultSMSCountryPrefix),
		},
		SMTP: SMTPConfig{
			Host:       lookup("SMTP_HOST"),
			Port:       intOrDefault(lookup("SMTP_PORT"), defaultSMTPPort),
			Username:   lookup("SMTP_USERNAME"),
			Password:   lookup("SMTP_PASSWORD"),
			From:       lookup("SMTP_FROM"),
			AdminEmail: lookup("ADMIN_ALERT_EMAIL"),
		},
		Events: EventsConfig{
			ProjectID: valueOrDefault(lookup("PUBSUB_PROJECT_ID"), lookup("FIRESTORE_PROJECT_ID")),
			Topic:     valueOrDefault(lookup("ORDER_EVENTS_TOPIC"), defaultEventsTopic),
		},
	}

	if err := resolveSecrets(ctx, &cfg, options.resolver); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Firestore.ProjectID) == "" && strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT")) == "" {
		return errors.New("config: FIRESTORE_PROJECT_ID is required")
	}
	if strings.HasPrefix(c.Razorpay.KeySecret, secretRefPrefix) {
		return errors.New("config: RAZORPAY_KEY_SECRET reference was not resolved")
	}
	return nil
}

func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver) error {
	refs := []*string{&cfg.Razorpay.KeySecret, &cfg.SMS.AuthKey, &cfg.SMTP.Password}
	for _, ref := range refs {
		value := strings.TrimSpace(*ref)
		if !strings.HasPrefix(value, secretRefPrefix) {
			continue
		}
		if resolver == nil {
			return fmt.Errorf("config: secret reference %q requires a resolver", value)
		}
		resolved, err := resolver.Resolve(ctx, strings.TrimPrefix(value, secretRefPrefix))
		if err != nil {
			return fmt.Errorf("config: resolve secret %q: %w", value, err)
		}
		*ref = strings.TrimSpace(resolved)
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func durationOrDefault(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func intOrDefault(value string, fallback int) int {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
