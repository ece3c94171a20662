package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/location-insights/internal/domain/auth"
	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/insights"
	"github.com/yanqian/location-insights/internal/domain/pipeline"
	"github.com/yanqian/location-insights/internal/infra/config"
	"github.com/yanqian/location-insights/internal/infra/events"
	"github.com/yanqian/location-insights/internal/infra/geocache"
	"github.com/yanqian/location-insights/internal/infra/google"
	"github.com/yanqian/location-insights/internal/infra/llm/chatgpt"
	"github.com/yanqian/location-insights/internal/infra/llm/gemini"
	"github.com/yanqian/location-insights/internal/infra/llm/tokens"
	"github.com/yanqian/location-insights/internal/infra/output"
	"github.com/yanqian/location-insights/internal/infra/weather/openmeteo"
)

// PipelineSet builds a pipeline.Service from *config.Config, a logger, a
// context and a pipeline.ResultStore.
var PipelineSet = wire.NewSet(
	ProvideInsightsConfig,
	ProvideCampaignConfig,
	ProvideGeocodeClient,
	ProvidePlacesClient,
	ProvideWeatherClient,
	ProvideGeocodeCache,
	ProvideTextModel,
	ProvideTokenCounter,
	ProvideArchivers,
	insights.NewService,
	campaign.NewService,
	pipeline.NewService,
	wire.Bind(new(insights.Geocoder), new(*google.GeocodeClient)),
	wire.Bind(new(insights.PlacesSearcher), new(*google.PlacesClient)),
	wire.Bind(new(insights.WeatherClient), new(*openmeteo.Client)),
)

// AuthSet builds the token service.
var AuthSet = wire.NewSet(
	ProvideAuthConfig,
	ProvideClientRegistry,
	auth.NewService,
)

func ProvideInsightsConfig(cfg *config.Config) insights.Config {
	return insights.Config{
		BiasRadiusMeters: cfg.Google.BiasRadiusMeters,
		CacheTTL:         cfg.GeoCache.TTL,
	}
}

func ProvideCampaignConfig(cfg *config.Config) campaign.Config {
	return campaign.Config{
		Count:             cfg.Campaign.Count,
		SelectCount:       cfg.Campaign.SelectCount,
		MaxSelectAttempts: cfg.Campaign.MaxSelectAttempts,
		MaxStores:         cfg.Campaign.MaxStores,
		MaxHourlyPoints:   cfg.Campaign.MaxHourlyPoints,
		PromptTokenBudget: cfg.Campaign.PromptTokenBudget,
		BusinessProfile:   cfg.Campaign.BusinessProfile,
	}
}

func ProvideGeocodeClient(cfg *config.Config) *google.GeocodeClient {
	return google.NewGeocodeClient(cfg.Google.APIKey, cfg.Google.GeocodeURL, cfg.HTTP.ClientTimeout)
}

func ProvidePlacesClient(cfg *config.Config) *google.PlacesClient {
	return google.NewPlacesClient(cfg.Google.APIKey, cfg.Google.PlacesURL, cfg.HTTP.ClientTimeout)
}

func ProvideWeatherClient(cfg *config.Config) *openmeteo.Client {
	return openmeteo.NewClient(cfg.Weather.BaseURL, cfg.HTTP.ClientTimeout)
}

// ProvideGeocodeCache prefers valkey when configured and reachable, otherwise
// an in-process cache.
func ProvideGeocodeCache(cfg *config.Config, logger *slog.Logger) (insights.GeocodeCache, func()) {
	memory := geocache.NewMemoryCache(cfg.GeoCache.TTL)
	if !cfg.GeoCache.Valkey.Enabled {
		return memory, func() {}
	}
	opt, err := buildValkeyOptions(cfg.GeoCache.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
		return memory, func() {}
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
		return memory, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory cache", "error", err)
		client.Close()
		return memory, func() {}
	}
	logger.Info("geocode valkey cache enabled", "addr", cfg.GeoCache.Valkey.Addr)
	return geocache.NewValkeyCache(client, cfg.GeoCache.Valkey.Prefix), client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	if strings.TrimSpace(addr) == "" {
		return valkey.ClientOption{}, fmt.Errorf("valkey address is empty")
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// ProvideTextModel selects the configured model backend.
func ProvideTextModel(ctx context.Context, cfg *config.Config) (campaign.TextModel, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case "openai":
		client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Temperature, cfg.HTTP.ClientTimeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "gemini", "":
		client, err := gemini.NewClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
}

func ProvideTokenCounter(cfg *config.Config, logger *slog.Logger) campaign.TokenCounter {
	return tokens.NewCounter(cfg.Campaign.Tokenizer, logger)
}

// ProvideResultStore writes the two result files straight into output.dir.
func ProvideResultStore(cfg *config.Config) pipeline.ResultStore {
	return output.NewFileStore(cfg.Output.Dir, cfg.Output.InsightsFile, cfg.Output.CampaignsFile)
}

// ProvideServerResultStore gives every run its own directory under
// output.dir.
func ProvideServerResultStore(cfg *config.Config) pipeline.ResultStore {
	return output.NewFileStore(cfg.Output.Dir, cfg.Output.InsightsFile, cfg.Output.CampaignsFile).PerRun()
}

// ProvideArchivers connects every enabled archive. An archive that cannot be
// reached at startup is skipped rather than failing the process.
func ProvideArchivers(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Archivers, func()) {
	var (
		archivers pipeline.Archivers
		closers   []func()
	)

	if cfg.Archive.ObjectStore.Enabled {
		store := cfg.Archive.ObjectStore
		archive, err := output.NewObjectArchive(output.ObjectStoreOptions{
			Endpoint:  store.Endpoint,
			AccessKey: store.AccessKey,
			SecretKey: store.SecretKey,
			Bucket:    store.Bucket,
			Region:    store.Region,
			UseSSL:    store.UseSSL,
			Prefix:    store.Prefix,
		}, logger)
		if err != nil {
			logger.Error("object store archive disabled", "error", err)
		} else {
			logger.Info("object store archive enabled", "bucket", store.Bucket)
			archivers = append(archivers, archive)
		}
	}

	if pool := openPostgres(ctx, cfg.Archive.Postgres, logger); pool != nil {
		archivers = append(archivers, output.NewPostgresArchive(pool))
		closers = append(closers, pool.Close)
	}

	if cfg.Events.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic)
		logger.Info("kafka run events enabled", "topic", cfg.Events.Kafka.Topic)
		archivers = append(archivers, publisher)
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka publisher close failed", "error", err)
			}
		})
	}

	return archivers, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, archive disabled", "error", err)
		return nil
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, archive disabled", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres ping failed, archive disabled", "error", err)
		pool.Close()
		return nil
	}
	if cfg.AutoMigrate {
		if err := output.Migrate(ctx, pool); err != nil {
			logger.Error("postgres migration failed, archive disabled", "error", err)
			pool.Close()
			return nil
		}
	}
	logger.Info("postgres run archive enabled")
	return pool
}

func ProvideAuthConfig(cfg *config.Config) auth.Config {
	clients := make([]auth.Client, 0, len(cfg.Auth.Clients))
	for _, c := range cfg.Auth.Clients {
		clients = append(clients, auth.Client{ID: c.ID, SecretHash: c.SecretHash})
	}
	return auth.Config{
		Secret:   cfg.Auth.Secret,
		TokenTTL: cfg.Auth.TokenTTL,
		Clients:  clients,
	}
}

func ProvideClientRegistry(cfg auth.Config) auth.ClientRegistry {
	return auth.NewStaticRegistry(cfg.Clients)
}
