package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/services"
)

const (
	ContextUserID    = "user_id"
	ContextUsername  = "username"
	ContextSessionID = "session_id"
)

var (
	errMissingToken = errors.New("Authorization header required")
	errBadScheme    = errors.New("Invalid authorization format")
)

// requestToken takes the token from a Bearer header, falling back to the token query
// parameter used by websocket clients.
func requestToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", errMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errBadScheme
	}
	return strings.TrimSpace(token), nil
}

// AuthMiddleware verifies the access token and exposes the player on the gin context.
func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := requestToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextSessionID, claims.SessionID)
		c.Next()
	}
}

type rateRule struct {
	action string
	limit  int
}

func ruleFor(path string) (rateRule, bool) {
	switch {
	case strings.HasSuffix(path, "/matchmaking/join"):
		return rateRule{action: "join", limit: services.DefaultRateLimitJoin}, true
	case strings.HasSuffix(path, "/move"), strings.HasSuffix(path, "/emoji"):
		return rateRule{action: "move", limit: services.DefaultRateLimitMove}, true
	case strings.Contains(path, "/game/buy-"),
		strings.Contains(path, "/fazenda/buy-"),
		strings.HasSuffix(path, "/game/recharge"):
		return rateRule{action: "shop", limit: services.DefaultRateLimitShop}, true
	}
	return rateRule{}, false
}

// RateLimitMiddleware applies per player fixed window limits to the write endpoints. A Redis
// failure lets the request through.
func RateLimitMiddleware(redisService *services.RedisService, logger *zap.Logger) gin.HandlerFunc {
	const window = time.Minute

	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			c.Next()
			return
		}

		rule, ok := ruleFor(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}

		allowed, err := redisService.CheckRateLimit(c.Request.Context(), userID, rule.action, rule.limit, window)
		if err != nil {
			logger.Warn("rate limit check failed", zap.String("user_id", userID), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
