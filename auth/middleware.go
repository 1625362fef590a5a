package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireAuth verifies the caller's token and stores id/name on the context.
// Websocket clients cannot set headers from the browser, so the token is also
// accepted as a query parameter.
func RequireAuth(manager *JWTManager) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := ctx.Query("token")
		if token == "" {
			header := ctx.GetHeader("Authorization")
			token = strings.TrimPrefix(header, "Bearer ")
			if token == header {
				token = ""
			}
		}
		if token == "" {
			if cookie, err := ctx.Cookie("session"); err == nil {
				token = cookie
			}
		}
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		claims, err := manager.Verify(token)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		ctx.Set("id", claims.Id)
		ctx.Set("name", claims.Name)
		ctx.Next()
	}
}
