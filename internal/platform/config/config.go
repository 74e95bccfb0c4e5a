package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Config aggregates every typed configuration section consumed by the API.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	PSP       PSPConfig
	Pricing   PricingConfig
	Jobs      JobsConfig
}

// ServerConfig bundles HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PSPConfig collects secrets for the payment provider.
type PSPConfig struct {
	StripeAPIKey string
	Currency     string
}

// PricingConfig carries the coupon table injected into the pricing calculator.
// Rates are fractions of the subtotal and must fall in (0, 1].
type PricingConfig struct {
	CouponRates map[string]float64
}

// JobsConfig controls the booking event publisher.
type JobsConfig struct {
	ProjectID  string
	EventTopic string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading the process environment, useful in tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver wires the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// EnvironmentValues returns the effective key/value environment map after
// applying the same precedence rules as Load (dotenv < OS env < explicit map).
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}

	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
				continue
			}
			values[strings.TrimSpace(parts[0])] = parts[1]
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the Config from the environment, resolving secret references
// and validating required fields and coupon rates.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}

	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	get := func(key string) string {
		return strings.TrimSpace(values[key])
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         firstNonEmpty(get("PORT"), defaultPort),
			ReadTimeout:  durationOrDefault(get("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationOrDefault(get("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationOrDefault(get("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       firstNonEmpty(get("FIREBASE_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			CredentialsFile: get("FIREBASE_CREDENTIALS_FILE"),
		},
		Firestore: FirestoreConfig{
			ProjectID:    firstNonEmpty(get("FIRESTORE_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			EmulatorHost: get("FIRESTORE_EMULATOR_HOST"),
		},
		PSP: PSPConfig{
			StripeAPIKey: get("STRIPE_SECRET_KEY"),
			Currency:     strings.ToLower(firstNonEmpty(get("PAYMENT_CURRENCY"), "usd")),
		},
		Jobs: JobsConfig{
			ProjectID:  firstNonEmpty(get("PUBSUB_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			EventTopic: get("BOOKING_EVENTS_TOPIC"),
		},
	}

	rates, err := parseCouponRates(get("COUPON_RATES"))
	if err != nil {
		return Config{}, err
	}
	cfg.Pricing = PricingConfig{CouponRates: rates}

	if strings.HasPrefix(cfg.PSP.StripeAPIKey, "secret://") {
		resolved, err := resolveSecret(ctx, options.secret, cfg.PSP.StripeAPIKey)
		if err != nil {
			return Config{}, err
		}
		cfg.PSP.StripeAPIKey = resolved
	}

	var missing []string
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "FIREBASE_PROJECT_ID")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "FIRESTORE_PROJECT_ID")
	}
	if cfg.PSP.StripeAPIKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Config{}, &ValidationError{fields: missing}
	}

	return cfg, nil
}

// parseCouponRates parses "CODE=RATE,CODE=RATE" pairs. A rate outside (0, 1]
// is a configuration error, never a silently accepted discount.
func parseCouponRates(raw string) (map[string]float64, error) {
	rates := make(map[string]float64)
	if raw == "" {
		return rates, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: malformed coupon rate entry %q", pair)
		}
		code := strings.ToUpper(strings.TrimSpace(parts[0]))
		rate, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("config: coupon %s has invalid rate: %w", code, err)
		}
		if code == "" {
			return nil, fmt.Errorf("config: coupon rate entry %q has empty code", pair)
		}
		if rate <= 0 || rate > 1 {
			return nil, fmt.Errorf("config: coupon %s rate %v outside (0,1]", code, rate)
		}
		rates[code] = rate
	}
	return rates, nil
}

func resolveSecret(ctx context.Context, resolver SecretResolver, ref string) (string, error) {
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	value, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &SecretError{Ref: ref, Err: errors.New("resolved secret is empty")}
	}
	return value, nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func durationOrDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
