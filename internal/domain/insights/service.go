package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/yanqian/location-insights/pkg/errors"
	"github.com/yanqian/location-insights/pkg/metrics"
)

// MsgLocationUnavailable is reported whenever a ZIP code cannot be geocoded.
const MsgLocationUnavailable = "Could not fetch location data."

// Service resolves a ZIP code and gathers store and weather data around it.
type Service interface {
	Resolve(ctx context.Context, zipcode string) (Coordinate, error)
	LookupPlaces(ctx context.Context, zipcode, storeType string) ([]Place, error)
	LookupWeather(ctx context.Context, zipcode string) (WeatherReport, error)
	Aggregate(ctx context.Context, req Request) (LocationInsights, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, zipcode string) (Coordinate, error)
}

type PlacesSearcher interface {
	SearchText(ctx context.Context, query PlacesQuery) ([]Place, error)
}

type WeatherClient interface {
	Forecast(ctx context.Context, at Coordinate) (json.RawMessage, error)
}

// GeocodeCache remembers resolved ZIP codes.
type GeocodeCache interface {
	Get(ctx context.Context, zipcode string) (Coordinate, bool, error)
	Set(ctx context.Context, zipcode string, at Coordinate, ttl time.Duration) error
}

type service struct {
	cfg      Config
	geocoder Geocoder
	places   PlacesSearcher
	weather  WeatherClient
	cache    GeocodeCache
	group    singleflight.Group
	logger   *slog.Logger
}

// NewService wires up the location insights domain.
func NewService(cfg Config, geocoder Geocoder, places PlacesSearcher, weather WeatherClient, cache GeocodeCache, logger *slog.Logger) Service {
	return &service{
		cfg:      cfg,
		geocoder: geocoder,
		places:   places,
		weather:  weather,
		cache:    cache,
		logger:   logger.With("component", "insights.service"),
	}
}

func (s *service) Resolve(ctx context.Context, zipcode string) (Coordinate, error) {
	zipcode = strings.TrimSpace(zipcode)
	if zipcode == "" {
		s.logger.Warn("geocoding skipped", "reason", "empty zipcode")
		return Coordinate{}, apperrors.Wrap(apperrors.CodeLocationUnavailable, MsgLocationUnavailable, nil)
	}

	if s.cache != nil {
		at, ok, err := s.cache.Get(ctx, zipcode)
		if err != nil {
			s.logger.Warn("geocode cache lookup failed", "zipcode", zipcode, "error", err)
		} else if ok {
			return at, nil
		}
	}

	value, err, _ := s.group.Do(zipcode, func() (any, error) {
		at, err := s.geocoder.Geocode(ctx, zipcode)
		metrics.CountUpstream("geocode", err)
		return at, err
	})
	if err != nil {
		s.logger.Warn("geocoding failed", "zipcode", zipcode, "reason", err.Error())
		return Coordinate{}, apperrors.Wrap(apperrors.CodeLocationUnavailable, MsgLocationUnavailable, nil)
	}
	at := value.(Coordinate)

	if s.cache != nil {
		if err := s.cache.Set(ctx, zipcode, at, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("geocode cache save failed", "zipcode", zipcode, "error", err)
		}
	}
	return at, nil
}

func (s *service) LookupPlaces(ctx context.Context, zipcode, storeType string) ([]Place, error) {
	at, err := s.Resolve(ctx, zipcode)
	if err != nil {
		return nil, err
	}
	return s.searchPlaces(ctx, strings.TrimSpace(zipcode), storeType, at)
}

func (s *service) LookupWeather(ctx context.Context, zipcode string) (WeatherReport, error) {
	at, err := s.Resolve(ctx, zipcode)
	if err != nil {
		return WeatherReport{}, err
	}
	return s.forecast(ctx, at)
}

func (s *service) Aggregate(ctx context.Context, req Request) (LocationInsights, error) {
	zipcode := strings.TrimSpace(req.ZipCode)
	if strings.TrimSpace(req.StoreType) == "" {
		return LocationInsights{}, apperrors.Wrap(apperrors.CodeInvalidInput, "store type cannot be empty", nil)
	}

	at, err := s.Resolve(ctx, zipcode)
	if err != nil {
		return LocationInsights{}, err
	}

	stores, err := s.searchPlaces(ctx, zipcode, req.StoreType, at)
	if err != nil {
		return LocationInsights{}, err
	}
	s.logger.Info("places fetched", "zipcode", zipcode, "stores", len(stores))

	weather, err := s.forecast(ctx, at)
	if err != nil {
		// A failed forecast does not abort the run; the reason travels with the record.
		s.logger.Warn("weather lookup failed, continuing without forecast", "zipcode", zipcode, "error", err)
		weather = WeatherReport{Failure: err.Error()}
	}

	return LocationInsights{
		ZipCode: zipcode,
		Stores:  stores,
		Weather: weather,
	}, nil
}

func (s *service) searchPlaces(ctx context.Context, zipcode, storeType string, at Coordinate) ([]Place, error) {
	query := PlacesQuery{Text: fmt.Sprintf("%s in %s", storeType, zipcode)}
	if s.cfg.BiasRadiusMeters > 0 {
		bias := at
		query.Bias = &bias
		query.RadiusMeters = s.cfg.BiasRadiusMeters
	}
	stores, err := s.places.SearchText(ctx, query)
	metrics.CountUpstream("places", err)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePlacesError, "places request failed", err)
	}
	if stores == nil {
		stores = []Place{}
	}
	return stores, nil
}

func (s *service) forecast(ctx context.Context, at Coordinate) (WeatherReport, error) {
	payload, err := s.weather.Forecast(ctx, at)
	metrics.CountUpstream("weather", err)
	if err != nil {
		return WeatherReport{}, apperrors.Wrap(apperrors.CodeWeatherError, "Error fetching weather data", err)
	}
	return WeatherReport{Payload: payload}, nil
}
