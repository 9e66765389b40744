package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreDriverFile   = "file"
	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"

	defaultQuotaBytes = 5 * 1024 * 1024
)

// Settings is the environment-driven configuration shared by the binaries.
type Settings struct {
	StoreDriver          string
	StoreDir             string
	StoreQuotaBytes      int
	RedisAddress         string
	RedisConnectAttempts int
	UploadMaxBytes       int
	GCSBucket            string
	GCSCredentialsJSON   string
	GCSSignerEmail       string
	GCSSignerPrivateKey  string
	StorageAccessBaseURL string
	PubSubProjectID      string
	PubSubTopic          string
	PhoneRegion          string
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// Load reads the settings from the environment, falling back to defaults.
func Load() *Settings {
	return &Settings{
		StoreDriver:          strings.ToLower(stringFromEnv("STORE_DRIVER", StoreDriverFile)),
		StoreDir:             stringFromEnv("STORE_DIR", "./data"),
		StoreQuotaBytes:      intFromEnv("STORE_QUOTA_BYTES", defaultQuotaBytes),
		RedisAddress:         stringFromEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisConnectAttempts: intFromEnv("REDIS_CONNECT_ATTEMPTS", 5),
		UploadMaxBytes:       intFromEnv("UPLOAD_MAX_BYTES", defaultQuotaBytes),
		GCSBucket:            stringFromEnv("GCS_BUCKET", ""),
		GCSCredentialsJSON:   stringFromEnv("GCS_CREDENTIALS_JSON", ""),
		GCSSignerEmail:       stringFromEnv("GCS_SIGNER_EMAIL", ""),
		GCSSignerPrivateKey:  stringFromEnv("GCS_SIGNER_PRIVATE_KEY", ""),
		StorageAccessBaseURL: stringFromEnv("STORAGE_ACCESS_BASE_URL", ""),
		PubSubProjectID:      pubSubProjectID(),
		PubSubTopic:          stringFromEnv("PUBSUB_TOPIC", ""),
		PhoneRegion:          strings.ToUpper(stringFromEnv("PHONE_REGION", "IN")),
	}
}

func pubSubProjectID() string {
	// Prefer explicit override.
	if v := stringFromEnv("PUBSUB_PROJECT_ID", ""); v != "" {
		return v
	}
	return stringFromEnv("GOOGLE_CLOUD_PROJECT", "")
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
