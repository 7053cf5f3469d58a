// server/config/config.go
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// --- Sub-structs mirroring the YAML layout ---

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Env         string   `mapstructure:"env"`
	Version     string   `mapstructure:"version"`
	CORSOrigins []string `mapstructure:"corsOrigins"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	LockTTL   string `mapstructure:"lockTTL"`
	KeyPrefix string `mapstructure:"keyPrefix"`
}

type GeoConfig struct {
	SearchRadiusKm float64 `mapstructure:"searchRadiusKm"`
}

type GeminiConfig struct {
	APIKey  string `mapstructure:"apiKey"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"baseURL"`
}

type TwilioConfig struct {
	AccountSID          string `mapstructure:"accountSID"`
	AuthToken           string `mapstructure:"authToken"`
	MessagingServiceSID string `mapstructure:"messagingServiceSID"`
	PhonePrefix         string `mapstructure:"phonePrefix"`
	BaseURL             string `mapstructure:"baseURL"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// --- Root config ---

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Geo    GeoConfig    `mapstructure:"geo"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	Twilio TwilioConfig `mapstructure:"twilio"`
	S3     S3Config     `mapstructure:"s3"`
	Admin  AdminConfig  `mapstructure:"admin"`
}

// TokenTTL parses jwt.expiration, falling back to 24h.
func (c Config) TokenTTL() time.Duration {
	return parseDuration(c.JWT.Expiration, 24*time.Hour)
}

// LockTTL parses redis.lockTTL, falling back to 5s.
func (c Config) LockTTL() time.Duration {
	return parseDuration(c.Redis.LockTTL, 5*time.Second)
}

// SearchRadiusMeters is the proximity radius used by search and SOS fan-out.
func (c Config) SearchRadiusMeters() float64 {
	if c.Geo.SearchRadiusKm <= 0 {
		return 50_000
	}
	return c.Geo.SearchRadiusKm * 1000
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// LoadConfig reads config.yaml from path and overrides it with environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("server.port", "3001")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.version", "dev")
	v.SetDefault("server.corsOrigins", []string{"http://localhost:5173"})
	v.SetDefault("mongo.dbName", "blooddoc")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("redis.lockTTL", "5s")
	v.SetDefault("redis.keyPrefix", "blooddoc:lock:")
	v.SetDefault("geo.searchRadiusKm", 50)
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.baseURL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("twilio.phonePrefix", "+91")
	v.SetDefault("twilio.baseURL", "https://api.twilio.com/2010-04-01")
	v.SetDefault("admin.email", "admin@blooddoc.local")

	v.AutomaticEnv()

	// "mongo.uri" in YAML maps to MONGODB_URI, and so on.
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.env", "APP_ENV")
	v.BindEnv("server.version", "APP_VERSION")
	v.BindEnv("server.corsOrigins", "CORS_ORIGINS")
	v.BindEnv("mongo.uri", "MONGODB_URI")
	v.BindEnv("mongo.dbName", "MONGODB_DBNAME")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.username", "REDIS_USERNAME")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.lockTTL", "LOCK_TTL")
	v.BindEnv("redis.keyPrefix", "REDIS_LOCK_PREFIX")
	v.BindEnv("geo.searchRadiusKm", "SEARCH_RADIUS_KM")
	v.BindEnv("gemini.apiKey", "GEMINI_API_KEY")
	v.BindEnv("gemini.model", "GEMINI_MODEL")
	v.BindEnv("gemini.baseURL", "GEMINI_BASE_URL")
	v.BindEnv("twilio.accountSID", "TWILIO_ACCOUNT_SID")
	v.BindEnv("twilio.authToken", "TWILIO_AUTH_TOKEN")
	v.BindEnv("twilio.messagingServiceSID", "TWILIO_MESSAGING_SERVICE_SID")
	v.BindEnv("twilio.phonePrefix", "TWILIO_PHONE_NUMBER_PREFIX")
	v.BindEnv("twilio.baseURL", "TWILIO_BASE_URL")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.cloudFrontDomain", "S3_CLOUDFRONT_DOMAIN")
	v.BindEnv("admin.email", "ADMIN_EMAIL")
	v.BindEnv("admin.password", "ADMIN_PASSWORD")

	// A missing config.yaml is fine: environment variables alone are enough.
	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	if config.Mongo.URI == "" {
		return config, errors.New("mongo.uri (MONGODB_URI) is required")
	}
	if config.JWT.Secret == "" {
		return config, errors.New("jwt.secret (JWT_SECRET) is required")
	}

	return
}
