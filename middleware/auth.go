package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"doc-ingest-backend/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims 上游网关签发的身份断言
// 凭证校验在网关完成，这里只验证签名并提取owner_id
type Claims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

// GenerateToken 签发身份断言，供测试工具模拟网关
func GenerateToken(ownerID string) (string, error) {
	claims := Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	secretKey := []byte(config.Cfg.Gateway.SecretKey)
	return token.SignedString(secretKey)
}

// IdentityMiddleware 验证网关转发的身份断言
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			slog.Info("Authorization header required")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			slog.Info("Invalid authorization format")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		tokenString := parts[1]
		claims := &Claims{}

		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(config.Cfg.Gateway.SecretKey), nil
		})

		if err != nil || !token.Valid || claims.OwnerID == "" {
			slog.Info("Invalid identity token", "err", err, "owner_id", claims.OwnerID)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set("owner_id", claims.OwnerID)
		c.Next()
	}
}
