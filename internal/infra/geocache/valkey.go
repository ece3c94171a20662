package geocache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/location-insights/internal/domain/insights"
)

// ValkeyCache shares resolved coordinates across processes.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache constructs a cache backed by Valkey.
func NewValkeyCache(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "geocode:"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

func (c *ValkeyCache) Get(ctx context.Context, zipcode string) (insights.Coordinate, bool, error) {
	cmd := c.client.B().Get().Key(c.key(zipcode)).Build()
	payload, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return insights.Coordinate{}, false, nil
		}
		return insights.Coordinate{}, false, err
	}
	var at insights.Coordinate
	if err := json.Unmarshal([]byte(payload), &at); err != nil {
		return insights.Coordinate{}, false, err
	}
	return at, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, zipcode string, at insights.Coordinate, ttl time.Duration) error {
	payload, err := json.Marshal(at)
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.key(zipcode)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

func (c *ValkeyCache) key(zipcode string) string {
	return c.prefix + normalize(zipcode)
}

var _ insights.GeocodeCache = (*ValkeyCache)(nil)
