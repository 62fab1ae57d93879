package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "auth_claims"

// Middleware rejects requests without a valid bearer token and stores the
// claims in the gin context.
func Middleware(secret []byte, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			return
		}
		claims, err := ParseToken(raw, secret)
		if err != nil {
			logger.Debug("Rejected bearer token", zap.Error(err), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Jeton invalide ou expiré"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireOrganization answers 403 unless the query parameter named param
// matches the organization of the authenticated caller.
func RequireOrganization(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			return
		}
		if !strings.EqualFold(c.Query(param), claims.OrganizationID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Accès refusé pour cette organisation"})
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Middleware.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
