package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The vault keys are kept as hex strings here and
// parsed into raw key bytes by the vault package at startup so that key
// validation failures surface in exactly one place.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign owner access tokens
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for owner and link passwords

	VaultKeyHex         string // hex-encoded 32-byte key for secret encryption (required)
	VaultPreviousKeyHex string // hex-encoded previous key, set only during rotation (optional)

	SMSAccountID string // SMS provider account identifier (optional)
	SMSAuthToken string // SMS provider auth token (optional)
	SMSFrom      string // sender phone number for outbound codes (optional)
	SMSBaseURL   string // SMS provider API base URL (optional, has a default)
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. The SMS variables are
// deliberately optional: without them code dispatch degrades to logging the
// message instead of sending it.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		VaultKeyHex:         must("VAULT_KEY"),
		VaultPreviousKeyHex: os.Getenv("VAULT_KEY_PREVIOUS"),

		SMSAccountID: os.Getenv("SMS_ACCOUNT_ID"),
		SMSAuthToken: os.Getenv("SMS_AUTH_TOKEN"),
		SMSFrom:      os.Getenv("SMS_FROM"),
		SMSBaseURL:   os.Getenv("SMS_BASE_URL"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
