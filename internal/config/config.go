package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                 string
	AppEnv                  string
	AppPort                 string
	DatabaseURL             string
	DatabaseMaxOpenConns    int
	DatabaseMaxIdleConns    int
	DatabaseConnMaxLifetime time.Duration
	RedisURL                string
	NATSURL                 string
	EventSubjectPrefix      string
	CORSAllowOrigins        []string
	JWTSecret               string
	StorageDriver           string
	LocalUploadDir          string
	CloudinaryCloudName     string
	CloudinaryAPIKey        string
	CloudinaryAPISecret     string
	CloudinaryUploadFolder  string
	UploadMaxSizeMB         int
	QuizCacheTTL            time.Duration
	SubmitGrace             time.Duration
	AttemptSweepInterval    time.Duration
	SubmitRateLimit         int
	OpenAIAPIKey            string
	OpenAIModel             string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// UsesCloudinary reports whether uploaded documents go to Cloudinary instead of local disk.
func (c Config) UsesCloudinary() bool {
	return c.StorageDriver == "cloudinary"
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Quiz API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("events.subject_prefix", "gema.quiz")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("cloudinary.folder", "gema/quiz")
	v.SetDefault("upload.max_size_mb", 15)
	v.SetDefault("quiz.cache_ttl", "5m")
	v.SetDefault("quiz.submit_grace", "30s")
	v.SetDefault("quiz.sweep_interval", "0s")
	v.SetDefault("quiz.submit_rate_limit", 10)
	v.SetDefault("openai.model", "gpt-4o-mini")

	cacheTTL, err := parseDuration(v, "quiz.cache_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid quiz cache ttl: %w", err)
	}

	grace, err := parseDuration(v, "quiz.submit_grace", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid submit grace: %w", err)
	}

	sweep, err := parseDuration(v, "quiz.sweep_interval", 0)
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep interval: %w", err)
	}

	connLifetime, err := parseDuration(v, "database.conn_max_lifetime", 30*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid database connection lifetime: %w", err)
	}

	cfg := Config{
		AppName:                 v.GetString("app.name"),
		AppEnv:                  v.GetString("app.env"),
		AppPort:                 v.GetString("app.port"),
		DatabaseURL:             v.GetString("database.url"),
		DatabaseMaxOpenConns:    v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:    v.GetInt("database.max_idle_conns"),
		DatabaseConnMaxLifetime: connLifetime,
		RedisURL:                v.GetString("redis.url"),
		NATSURL:                 v.GetString("nats.url"),
		EventSubjectPrefix:      v.GetString("events.subject_prefix"),
		CORSAllowOrigins:        splitList(v.GetString("cors.allow_origins")),
		JWTSecret:               v.GetString("jwt.secret"),
		StorageDriver:           strings.ToLower(v.GetString("storage.driver")),
		LocalUploadDir:          v.GetString("storage.local_dir"),
		CloudinaryCloudName:     v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:        v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:     v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:  v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:         v.GetInt("upload.max_size_mb"),
		QuizCacheTTL:            cacheTTL,
		SubmitGrace:             grace,
		AttemptSweepInterval:    sweep,
		SubmitRateLimit:         v.GetInt("quiz.submit_rate_limit"),
		OpenAIAPIKey:            v.GetString("openai_api_key"),
		OpenAIModel:             v.GetString("openai.model"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 15
	}

	if cfg.SubmitRateLimit <= 0 {
		cfg.SubmitRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
