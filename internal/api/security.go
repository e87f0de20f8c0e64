package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/threadline/checkout/internal/repository"
)

const (
	customerHeader = "X-Customer-ID"
	apiKeyHeader   = "X-API-Key"

	staffScope = "staff"

	customerIDKey = "customerID"
)

// APIKeyFinder resolves a hashed API key to its stored record.
type APIKeyFinder interface {
	FindByHash(ctx context.Context, hash string) (*repository.APIKeyRecord, error)
}

// requireCustomer extracts the caller's identity from the X-Customer-ID
// header. Session issuance lives in front of this service; an absent header
// means the caller is not authenticated.
func (s *Server) requireCustomer(c *gin.Context) {
	id := c.GetHeader(customerHeader)
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing customer identity"})
		return
	}
	c.Set(customerIDKey, id)
	c.Next()
}

func customerID(c *gin.Context) string {
	return c.GetString(customerIDKey)
}

// requireStaffKey authenticates staff routes by hashing the provided API
// key, looking it up, and performing a constant-time comparison to prevent
// timing attacks.
func (s *Server) requireStaffKey(c *gin.Context) {
	key := c.GetHeader(apiKeyHeader)
	if key == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	hash := sha256.Sum256([]byte(key))
	info, err := s.apikeys.FindByHash(c.Request.Context(), hex.EncodeToString(hash[:]))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash[:], stored) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if !slices.Contains(info.Scopes, staffScope) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}
