package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tradedesk/tradedesk-api/config"
	"github.com/tradedesk/tradedesk-api/middleware"
	"github.com/tradedesk/tradedesk-api/models"
)

const (
	// TestJWTSecret signs the HS256 tokens of the test suites
	TestJWTSecret = "tradedesk-test-secret"
	// TestJWTIssuer is the issuer claimed by test tokens
	TestJWTIssuer = "tradedesk-tests"
)

// TestConfig is a configuration for HS256 auth on SQLite without any of the
// optional integrations
func TestConfig() *config.Config {
	return &config.Config{
		DatabaseURL:      "file::memory:?cache=shared",
		Port:             "0",
		GoEnv:            "test",
		JWTSecret:        TestJWTSecret,
		JWTIssuer:        TestJWTIssuer,
		LogLevel:         "error",
		BusinessTimezone: "UTC",
		TaxRate:          "0.08",
	}
}

// Token mints a valid token for subject
func Token(t *testing.T, subject string) string {
	t.Helper()
	token, err := middleware.SignHS256([]byte(TestJWTSecret), TestJWTIssuer, subject, time.Hour)
	require.NoError(t, err)
	return token
}

// Authorize adds a bearer token for user to req
func Authorize(t *testing.T, req *http.Request, user models.User) {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+Token(t, user.Subject))
}

// SetMockAuthContext sets up an authenticated context for handler tests
// that bypass the token middleware
func SetMockAuthContext(c *gin.Context, user *models.User) {
	c.Set("user_id", user.Subject)
	middleware.SetActor(c, user)
}

// AsUser returns a middleware that authenticates every request as user
func AsUser(user models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := user
		SetMockAuthContext(c, &u)
		c.Next()
	}
}
