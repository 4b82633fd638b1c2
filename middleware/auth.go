package middleware

import (
	"errors"
	"net/http"
	"strings"

	"socialapi/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UserIDKey is the gin context key holding the verified user id.
const UserIDKey = "userId"

// JWTAuthMiddleware rejects the request with 401 unless the Authorization
// header carries a bearer token accepted by verifier.
func JWTAuthMiddleware(verifier auth.Verifier, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip middleware for OPTIONS requests (CORS preflight)
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		userID, err := verifier.Verify(bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			message := "Token is not valid"
			if errors.Is(err, auth.ErrUnauthorized) {
				message = "Unauthorized access"
			}
			log.WithField("path", c.Request.URL.Path).WithError(err).Debug("rejected credential")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// bearerToken returns the token of a "Bearer <token>" header. A header in
// any other shape yields a non-empty string that fails verification.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return header
	}
	return strings.TrimSpace(token)
}
