package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	// UserID is the session owner: the engine aggregates and syncs the
	// conversation list of exactly this user.
	UserID string

	StorageMode string

	MongoURI string
	MongoDB  string

	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopics  TopicConfig

	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3UseSSL     bool
	AvatarURLTTL time.Duration

	ReloadDebounce time.Duration
	SearchDebounce time.Duration
}

// TopicConfig names the kafka topics carrying chat change events.
type TopicConfig struct {
	Messages      string
	GroupMessages string
	Memberships   string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:          getEnv("APP_ENV", "dev"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		UserID:       os.Getenv("USER_ID"),
		StorageMode:  strings.ToLower(getEnv("STORAGE_MODE", "mongo")),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getEnv("MONGO_DB", "linkup"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "linkup-conversations"),
		KafkaTopics: TopicConfig{
			Messages:      getEnv("KAFKA_TOPIC_MESSAGES", "chat.messages"),
			GroupMessages: getEnv("KAFKA_TOPIC_GROUP_MESSAGES", "chat.group-messages"),
			Memberships:   getEnv("KAFKA_TOPIC_MEMBERSHIPS", "chat.group-members"),
		},
		S3Endpoint:  getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:    getEnv("S3_BUCKET", "linkup-media"),
	}

	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	useSSL, err := parseBoolEnv("S3_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg.S3UseSSL = useSSL

	avatarTTL, err := parseDurationEnv("AVATAR_URL_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.AvatarURLTTL = avatarTTL

	reload, err := parseDurationEnv("RELOAD_DEBOUNCE", 250*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.ReloadDebounce = reload

	search, err := parseDurationEnv("SEARCH_DEBOUNCE", 300*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.SearchDebounce = search

	if cfg.UserID == "" {
		return Config{}, fmt.Errorf("USER_ID is required")
	}
	if cfg.StorageMode == "mongo" && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required")
	}
	if cfg.StorageMode != "mongo" && cfg.StorageMode != "memory" {
		return Config{}, fmt.Errorf("unknown STORAGE_MODE %q", cfg.StorageMode)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
