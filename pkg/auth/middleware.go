package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/wopihost/internal/logger"
)

const (
	principalKey = "wopi.principal"
	tokenKey     = "wopi.access_token"
)

// Middleware resolves the access token and stores the principal in the gin
// context. A missing token yields the anonymous principal when
// allowAnonymous is set; any other failure is a 401.
func Middleware(resolver TokenResolver, allowAnonymous bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" {
			if !allowAnonymous {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			c.Set(principalKey, AnonymousPrincipal())
			c.Next()
			return
		}

		p, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			logger.Debug("Access token rejected: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set(principalKey, p)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Middleware, or the
// anonymous principal when none is set.
func PrincipalFrom(c *gin.Context) *Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return AnonymousPrincipal()
}

// TokenFrom returns the access token accepted by Middleware.
func TokenFrom(c *gin.Context) string {
	return c.GetString(tokenKey)
}
