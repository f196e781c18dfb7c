package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/ocms-api/internal/middleware"
	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
	"github.com/noah-isme/ocms-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext writes a 401 and returns false when the request carries no claims.
func actorFromContext(c *gin.Context) (permission.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return permission.Actor{}, false
	}
	return permission.FromClaims(claims), true
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// bindJSON writes a 400 and returns false when the body cannot be decoded.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Invalid(err, message))
		return false
	}
	return true
}

// pathID returns the :id parameter in canonical form. A value that is not a
// UUID cannot match any row, so it writes a 404 naming resource and returns false.
func pathID(c *gin.Context, resource string) (string, bool) {
	return pathUUID(c, "id", resource)
}

func pathUUID(c *gin.Context, key, resource string) (string, bool) {
	id, err := uuid.Parse(c.Param(key))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, resource+" not found"))
		return "", false
	}
	return id.String(), true
}

// respondCached sends data with the cache hit flag in meta.
func respondCached(c *gin.Context, data interface{}, pagination *models.Pagination, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.Meta(c)
	response.JSON(c, http.StatusOK, data, pagination, meta)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
