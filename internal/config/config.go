package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "dev-secret"
)

type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	Environment string

	DatabaseURL    string
	MigrateOnStart bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret       string
	JWTIssuer       string
	SessionTokenTTL time.Duration

	OTPTTL           time.Duration
	OTPMaxAttempts   int
	OTPExposeCode    bool
	OTPRateLimit     int
	OTPRateWindow    time.Duration
	OTPRetention     time.Duration
	OTPSweepInterval time.Duration
	OTPSweepTimeout  time.Duration
	OTPHashCost      int

	MpesaServiceURL      string
	MpesaInitiateTimeout time.Duration
	MpesaStatusTimeout   time.Duration
	MpesaHealthTimeout   time.Duration

	UploadDir      string
	MaxImages      int
	MaxImageBytes  int64
	S3Bucket       string
	AWSRegion      string
	AWSEndpointURL string

	ATUsername string
	ATAPIKey   string
	ATSenderID string
	ATBaseURL  string

	LogLevel            string
	LogFormat           string
	HealthProbeInterval time.Duration
}

// Load reads the configuration from the environment. When CONFIG_FILE names a
// YAML file its keys (the same names as the env vars) act as defaults that the
// environment overrides.
func Load() (Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}

	env := strings.ToLower(src.getenv("APP_ENV", EnvDevelopment))
	otpTTL := src.getenvDuration("OTP_TTL", 10*time.Minute)
	cfg := Config{
		HTTPAddr:    src.getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:    src.getenv("GRPC_ADDR", ":9090"),
		Environment: env,

		DatabaseURL:    src.getenv("DATABASE_URL", ""),
		MigrateOnStart: src.getenvBool("DB_MIGRATE", true),

		RedisAddr:     src.getenv("REDIS_ADDR", ""),
		RedisPassword: src.getenv("REDIS_PASSWORD", ""),
		RedisDB:       src.getenvInt("REDIS_DB", 0),

		JWTSecret:       src.getenvKey("JWT_SECRET", devJWTSecret),
		JWTIssuer:       src.getenv("JWT_ISSUER", "at-insurance"),
		SessionTokenTTL: src.getenvDuration("SESSION_TOKEN_TTL", 7*24*time.Hour),

		OTPTTL:           otpTTL,
		OTPMaxAttempts:   src.getenvInt("OTP_MAX_ATTEMPTS", 5),
		OTPExposeCode:    src.getenvBool("OTP_EXPOSE_CODE", env == EnvDevelopment),
		OTPRateLimit:     src.getenvInt("OTP_RATE_LIMIT", 3),
		OTPRateWindow:    src.getenvDuration("OTP_RATE_WINDOW", time.Hour),
		OTPRetention:     src.getenvDuration("OTP_RETENTION", otpTTL),
		OTPSweepInterval: src.getenvDuration("OTP_SWEEP_INTERVAL", time.Minute),
		OTPSweepTimeout:  src.getenvDuration("OTP_SWEEP_TIMEOUT", 10*time.Second),
		OTPHashCost:      src.getenvInt("OTP_HASH_COST", 10),

		MpesaServiceURL:      src.getenv("MPESA_SERVICE_URL", "http://localhost:8001"),
		MpesaInitiateTimeout: src.getenvDuration("MPESA_INITIATE_TIMEOUT", 30*time.Second),
		MpesaStatusTimeout:   src.getenvDuration("MPESA_STATUS_TIMEOUT", 15*time.Second),
		MpesaHealthTimeout:   src.getenvDuration("MPESA_HEALTH_TIMEOUT", 5*time.Second),

		UploadDir:      src.getenv("UPLOAD_DIR", "uploads"),
		MaxImages:      src.getenvInt("MAX_CLAIM_IMAGES", 5),
		MaxImageBytes:  int64(src.getenvInt("MAX_CLAIM_IMAGE_BYTES", 5<<20)),
		S3Bucket:       src.getenv("S3_BUCKET", ""),
		AWSRegion:      src.getenv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: src.getenv("AWS_ENDPOINT_URL", ""),

		ATUsername: src.getenv("AT_USERNAME", "sandbox"),
		ATAPIKey:   src.getenvKey("AT_API_KEY", ""),
		ATSenderID: src.getenv("AT_SENDER_ID", ""),
		ATBaseURL:  src.getenv("AT_BASE_URL", "https://api.africastalking.com"),

		LogLevel:            src.getenv("LOG_LEVEL", "info"),
		LogFormat:           src.getenv("LOG_FORMAT", "json"),
		HealthProbeInterval: src.getenvDuration("HEALTH_PROBE_INTERVAL", 15*time.Second),
	}
	return cfg, nil
}

func (c Config) Production() bool {
	return c.Environment == EnvProduction
}

// Validate rejects settings that must never reach a production deployment.
func (c Config) Validate() error {
	if c.OTPTTL <= 0 {
		return errors.New("OTP_TTL must be positive")
	}
	if c.SessionTokenTTL <= 0 {
		return errors.New("SESSION_TOKEN_TTL must be positive")
	}
	if c.OTPMaxAttempts <= 0 {
		return errors.New("OTP_MAX_ATTEMPTS must be positive")
	}
	// Expired sessions must outlive OTP_TTL so verification can report them
	// as expired rather than missing.
	if c.OTPRetention < c.OTPTTL {
		return errors.New("OTP_RETENTION must be at least OTP_TTL")
	}
	if !c.Production() {
		return nil
	}
	if c.JWTSecret == "" || c.JWTSecret == devJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.OTPExposeCode {
		return errors.New("OTP_EXPOSE_CODE cannot be enabled in production")
	}
	if c.ATAPIKey == "" {
		return errors.New("AT_API_KEY must be set in production")
	}
	return nil
}

type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	if path == "" {
		return source{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return source{}, fmt.Errorf("parse config file: %w", err)
	}
	values := make(map[string]string, len(raw))
	for key, val := range raw {
		if val == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(val)
	}
	return source{file: values}, nil
}

func (s source) lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return s.file[key]
}

func (s source) getenv(key, fallback string) string {
	if val := s.lookup(key); val != "" {
		return val
	}
	return fallback
}

func (s source) getenvInt(key string, fallback int) int {
	if val := s.lookup(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func (s source) getenvBool(key string, fallback bool) bool {
	if val := s.lookup(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func (s source) getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := s.lookup(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := s.lookup(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func (s source) getenvKey(key, fallback string) string {
	if file := s.lookup(key + "_FILE"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return s.getenv(key, fallback)
}
