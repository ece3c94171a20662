package auth

import "time"

// Config drives token issuance.
type Config struct {
	Secret   string
	TokenTTL time.Duration
	Clients  []Client
}

// Client is an API consumer allowed to request tokens. SecretHash is a bcrypt hash.
type Client struct {
	ID         string `json:"id"`
	SecretHash string `json:"-"`
}

// TokenRequest carries client credentials.
type TokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// TokenResponse returns the signed access token.
type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims are extracted from the JWT token.
type Claims struct {
	ClientID  string
	TokenType string
	ExpiresAt time.Time
}
