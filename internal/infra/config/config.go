package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	LLM      LLMConfig      `yaml:"llm"`
	Google   GoogleConfig   `yaml:"google"`
	Weather  WeatherConfig  `yaml:"weather"`
	Campaign CampaignConfig `yaml:"campaign"`
	Output   OutputConfig   `yaml:"output"`
	GeoCache GeoCacheConfig `yaml:"geocache"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Events   EventsConfig   `yaml:"events"`
	Auth     AuthConfig     `yaml:"auth"`
}

// HTTPConfig controls server level behavior and outbound client timeouts.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	ClientTimeout  time.Duration   `yaml:"clientTimeout"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// LLMConfig selects and configures the text model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// GoogleConfig holds Maps Platform settings.
type GoogleConfig struct {
	APIKey           string  `yaml:"apiKey"`
	GeocodeURL       string  `yaml:"geocodeUrl"`
	PlacesURL        string  `yaml:"placesUrl"`
	BiasRadiusMeters float64 `yaml:"biasRadiusMeters"`
}

// WeatherConfig points at the forecast API.
type WeatherConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// CampaignConfig controls prompt construction and selection.
type CampaignConfig struct {
	Count             int    `yaml:"count"`
	SelectCount       int    `yaml:"selectCount"`
	MaxSelectAttempts int    `yaml:"maxSelectAttempts"`
	MaxStores         int    `yaml:"maxStores"`
	MaxHourlyPoints   int    `yaml:"maxHourlyPoints"`
	PromptTokenBudget int    `yaml:"promptTokenBudget"`
	Tokenizer         string `yaml:"tokenizer"`
	BusinessProfile   string `yaml:"businessProfile"`
}

// OutputConfig names the local result files.
type OutputConfig struct {
	Dir           string `yaml:"dir"`
	InsightsFile  string `yaml:"insightsFile"`
	CampaignsFile string `yaml:"campaignsFile"`
}

// GeoCacheConfig controls coordinate caching.
type GeoCacheConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Valkey ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for the shared cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// ArchiveConfig lists the optional run archives.
type ArchiveConfig struct {
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	Postgres    PostgresConfig    `yaml:"postgres"`
}

// ObjectStoreConfig defines S3-compatible storage access.
type ObjectStoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`
	Prefix    string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings. An empty DSN disables the archive.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	MaxConns    int32  `yaml:"maxConns"`
	MinConns    int32  `yaml:"minConns"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

// EventsConfig configures run event publishing.
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds producer settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// AuthConfig configures client-credential token issuance.
type AuthConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Secret   string         `yaml:"secret"`
	TokenTTL time.Duration  `yaml:"tokenTtl"`
	Clients  []ClientConfig `yaml:"clients"`
}

// ClientConfig registers one API client. SecretHash is a bcrypt hash.
type ClientConfig struct {
	ID         string `yaml:"id"`
	SecretHash string `yaml:"secretHash"`
}

// Load reads configuration from a YAML file, a .env file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv populates the process environment from ENV_FILE or ./.env.
// Variables already set in the environment win.
func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_CLIENT_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ClientTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}

	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Google.APIKey = v
	}
	if v := os.Getenv("GOOGLE_GEOCODE_URL"); v != "" {
		cfg.Google.GeocodeURL = v
	}
	if v := os.Getenv("GOOGLE_PLACES_URL"); v != "" {
		cfg.Google.PlacesURL = v
	}
	if v := os.Getenv("WEATHER_BASE_URL"); v != "" {
		cfg.Weather.BaseURL = v
	}

	if v := os.Getenv("CAMPAIGN_MAX_STORES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Campaign.MaxStores = parsed
		}
	}
	if v := os.Getenv("CAMPAIGN_PROMPT_TOKEN_BUDGET"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Campaign.PromptTokenBudget = parsed
		}
	}
	if v := os.Getenv("CAMPAIGN_MAX_SELECT_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Campaign.MaxSelectAttempts = parsed
		}
	}

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := os.Getenv("GEOCACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.GeoCache.TTL = parsed
		}
	}
	if v := os.Getenv("VALKEY_ENABLED"); v != "" {
		cfg.GeoCache.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.GeoCache.Valkey.Addr = v
	}

	if v := os.Getenv("ARCHIVE_OBJECT_STORE_ENABLED"); v != "" {
		cfg.Archive.ObjectStore.Enabled = parseBool(v)
	}
	if v := os.Getenv("ARCHIVE_OBJECT_STORE_ENDPOINT"); v != "" {
		cfg.Archive.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("ARCHIVE_OBJECT_STORE_ACCESS_KEY"); v != "" {
		cfg.Archive.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("ARCHIVE_OBJECT_STORE_SECRET_KEY"); v != "" {
		cfg.Archive.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("ARCHIVE_OBJECT_STORE_BUCKET"); v != "" {
		cfg.Archive.ObjectStore.Bucket = v
	}
	if v := os.Getenv("ARCHIVE_POSTGRES_DSN"); v != "" {
		cfg.Archive.Postgres.DSN = v
	}
	if v := os.Getenv("ARCHIVE_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Archive.Postgres.MaxConns = int32(parsed)
		}
	}

	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.Events.Kafka.Enabled = parseBool(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Events.Kafka.Topic = v
	}

	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = parseBool(v)
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("AUTH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = parsed
		}
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:       ":8080",
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  120 * time.Second,
			ClientTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 30,
				Burst:             5,
			},
			AllowedOrigins: []string{"*"},
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			Temperature: 0.7,
		},
		Google: GoogleConfig{
			GeocodeURL: "https://maps.googleapis.com/maps/api/geocode/json",
			PlacesURL:  "https://places.googleapis.com/v1/places:searchText",
		},
		Weather: WeatherConfig{
			BaseURL: "https://api.open-meteo.com/v1/forecast",
		},
		Campaign: CampaignConfig{
			Count:             10,
			SelectCount:       5,
			MaxSelectAttempts: 2,
			MaxStores:         20,
			MaxHourlyPoints:   24,
			PromptTokenBudget: 6000,
			Tokenizer:         "cl100k_base",
			BusinessProfile:   "mom and pop type small business",
		},
		Output: OutputConfig{
			Dir:           ".",
			InsightsFile:  "location_insights.json",
			CampaignsFile: "top_campaigns.json",
		},
		GeoCache: GeoCacheConfig{
			TTL: 24 * time.Hour,
			Valkey: ValkeyConfig{
				Prefix: "geocode:",
			},
		},
		Archive: ArchiveConfig{
			ObjectStore: ObjectStoreConfig{
				Prefix: "runs",
			},
			Postgres: PostgresConfig{
				MaxConns:    4,
				AutoMigrate: true,
			},
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Topic: "location-insights.runs",
			},
		},
		Auth: AuthConfig{
			TokenTTL: time.Hour,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.ClientTimeout <= 0 {
		return errors.New("http.clientTimeout must be positive")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.LLM.Provider)) {
	case "gemini", "openai":
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.Campaign.Count <= 0 {
		return errors.New("campaign.count must be positive")
	}
	if c.Campaign.SelectCount <= 0 || c.Campaign.SelectCount > c.Campaign.Count {
		return errors.New("campaign.selectCount must be between 1 and campaign.count")
	}
	if c.Campaign.MaxSelectAttempts <= 0 {
		return errors.New("campaign.maxSelectAttempts must be positive")
	}
	if c.Campaign.MaxStores < 0 || c.Campaign.MaxHourlyPoints < 0 || c.Campaign.PromptTokenBudget < 0 {
		return errors.New("campaign limits cannot be negative")
	}
	if strings.TrimSpace(c.Output.InsightsFile) == "" || strings.TrimSpace(c.Output.CampaignsFile) == "" {
		return errors.New("output file names cannot be empty")
	}
	if c.GeoCache.TTL < 0 {
		return errors.New("geocache.ttl cannot be negative")
	}
	if c.GeoCache.Valkey.Enabled && strings.TrimSpace(c.GeoCache.Valkey.Addr) == "" {
		return errors.New("geocache.valkey.addr cannot be empty when valkey cache is enabled")
	}
	if c.Archive.ObjectStore.Enabled {
		if strings.TrimSpace(c.Archive.ObjectStore.Endpoint) == "" || strings.TrimSpace(c.Archive.ObjectStore.Bucket) == "" {
			return errors.New("archive.objectStore endpoint and bucket are required when enabled")
		}
	}
	if c.Events.Kafka.Enabled {
		if len(c.Events.Kafka.Brokers) == 0 || strings.TrimSpace(c.Events.Kafka.Topic) == "" {
			return errors.New("events.kafka brokers and topic are required when enabled")
		}
	}
	if c.Auth.Enabled {
		if len(c.Auth.Secret) < 16 {
			return errors.New("auth.secret must be at least 16 characters when auth is enabled")
		}
		if c.Auth.TokenTTL <= 0 {
			return errors.New("auth.tokenTtl must be positive")
		}
		for _, client := range c.Auth.Clients {
			if strings.TrimSpace(client.ID) == "" || strings.TrimSpace(client.SecretHash) == "" {
				return errors.New("auth.clients entries need id and secretHash")
			}
		}
	}
	return nil
}
