package auth

import (
	"context"
	"strings"
)

// ClientRegistry looks up registered API clients.
type ClientRegistry interface {
	Lookup(ctx context.Context, clientID string) (Client, bool, error)
}

// StaticRegistry serves clients declared in configuration.
type StaticRegistry struct {
	clients map[string]Client
}

// NewStaticRegistry indexes the given clients by ID.
func NewStaticRegistry(clients []Client) *StaticRegistry {
	index := make(map[string]Client, len(clients))
	for _, c := range clients {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		c.ID = id
		index[id] = c
	}
	return &StaticRegistry{clients: index}
}

func (r *StaticRegistry) Lookup(_ context.Context, clientID string) (Client, bool, error) {
	c, ok := r.clients[strings.TrimSpace(clientID)]
	return c, ok, nil
}
