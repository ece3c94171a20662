package http

import (
	"github.com/gin-gonic/gin"

	"github.com/yanqian/location-insights/internal/domain/auth"
)

const claimsKey = "location_insights.claims"

func setClaims(c *gin.Context, claims auth.Claims) {
	c.Set(claimsKey, claims)
}

func getClaims(c *gin.Context) (auth.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}

// clientID names the authenticated API client, or "anonymous" when auth is
// off or the request carried no token.
func clientID(c *gin.Context) string {
	if claims, ok := getClaims(c); ok && claims.ClientID != "" {
		return claims.ClientID
	}
	return "anonymous"
}
