package jwt

import (
	"net/http"

	"LeadPulse/internal/config"
	"LeadPulse/pkg/back"
	"LeadPulse/pkg/util/myjwt"
	"LeadPulse/pkg/xerr"

	"github.com/gin-gonic/gin"
)

func Auth() gin.HandlerFunc {
	return AuthWithKey(config.GetConfig().JwtConfig.Key)
}

func AuthWithKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := myjwt.TokenFromRequest(c.Request)
		if tokenString == "" {
			back.Abort(c, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		claims, err := myjwt.ParseTokenWithKey(tokenString, key)
		if err != nil {
			back.Abort(c, xerr.Unauthorized, "invalid token")
			return
		}

		c.Set("uuid", claims.Uuid)
		c.Set("username", claims.Username)
		c.Next()
	}
}
