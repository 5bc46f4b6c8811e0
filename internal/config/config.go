package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	StoreBackend  string // "dynamo" | "mongo" | "memory"
	MongoURI      string
	MongoDatabase string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	MediaBackend     string // "s3" | "cloudinary" | "none"
	S3BucketName     string
	CloudinaryURL    string
	CloudinaryFolder string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	CookieSecure      bool

	OTPTTL                 time.Duration
	AllowAdminRegistration bool

	RedisURL                string
	VerifyAttemptsPerWindow int
	VerifyAttemptWindow     time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts          string
	PendingIdentities string
	OtpChallenges     string
	Experts           string
	Artists           string
	Admins            string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend:  getEnv("STORE_BACKEND", "dynamo"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase: getEnv("MONGO_DATABASE", "atelier"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:          getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			PendingIdentities: getEnv("DYNAMO_TABLE_PENDING_IDENTITIES", "pending_identities"),
			OtpChallenges:     getEnv("DYNAMO_TABLE_OTP_CHALLENGES", "otp_challenges"),
			Experts:           getEnv("DYNAMO_TABLE_EXPERTS", "experts"),
			Artists:           getEnv("DYNAMO_TABLE_ARTISTS", "artists"),
			Admins:            getEnv("DYNAMO_TABLE_ADMINS", "admins"),
		},

		MediaBackend:     getEnv("MEDIA_BACKEND", "s3"),
		S3BucketName:     getEnv("S3_BUCKET_NAME", "atelier-media"),
		CloudinaryURL:    getEnv("CLOUDINARY_URL", ""),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "profiles"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 12*time.Hour),
		CookieSecure:      getEnvBool("COOKIE_SECURE", getEnv("APP_ENV", "development") == "production"),

		OTPTTL:                 getEnvDuration("OTP_TTL", 5*time.Minute),
		AllowAdminRegistration: getEnvBool("ALLOW_ADMIN_REGISTRATION", false),

		RedisURL:                getEnv("REDIS_URL", ""),
		VerifyAttemptsPerWindow: getEnvInt("VERIFY_ATTEMPTS_PER_WINDOW", 5),
		VerifyAttemptWindow:     getEnvDuration("VERIFY_ATTEMPT_WINDOW", 5*time.Minute),

		KafkaBrokers: splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "accounts"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
