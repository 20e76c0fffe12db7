package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/press-downtime/internal/auth"
	"github.com/OldStager01/press-downtime/internal/logger"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	SubjectKey          = "subject"

	// ScopeAdmin satisfies any scope requirement.
	ScopeAdmin = "admin"
)

// JWTAuth requires a bearer token signed by svc. When scopes are given the
// token's scope must be one of them. A nil svc disables the check so local
// deployments can run without a secret.
func JWTAuth(svc *auth.Service, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			c.Next()
			return
		}

		raw, ok := bearerToken(c.GetHeader(AuthorizationHeader))
		if !ok {
			unauthorized(c, http.StatusUnauthorized, "missing or malformed bearer token")
			return
		}

		claims, err := svc.ValidateToken(raw)
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			unauthorized(c, http.StatusUnauthorized, "token expired")
			return
		case err != nil:
			unauthorized(c, http.StatusUnauthorized, "invalid token")
			return
		}

		if len(scopes) > 0 && claims.Scope != ScopeAdmin && !slices.Contains(scopes, claims.Scope) {
			logger.WithTrace(c.Request.Context()).
				WithField("subject", claims.Subject).
				Warnf("Rejected token with scope %q for %s", claims.Scope, c.FullPath())
			unauthorized(c, http.StatusForbidden, "token scope does not allow this operation")
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	token, found := strings.CutPrefix(header, BearerPrefix)
	if !found || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

func unauthorized(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

func GetSubject(c *gin.Context) string {
	return c.GetString(SubjectKey)
}
