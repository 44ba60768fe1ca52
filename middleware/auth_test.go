package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradedesk/tradedesk-api/config"
)

var testSecret = []byte("unit-test-secret")

func hs256Router(issuer string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", HS256Middleware(testSecret, issuer), func(c *gin.Context) {
		id, err := GetUserID(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	return router
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestHS256Middleware(t *testing.T) {
	valid, err := SignHS256(testSecret, "tradedesk", "user-1", time.Hour)
	require.NoError(t, err)
	expired, err := SignHS256(testSecret, "tradedesk", "user-1", -time.Hour)
	require.NoError(t, err)
	foreign, err := SignHS256([]byte("other-secret"), "tradedesk", "user-1", time.Hour)
	require.NoError(t, err)
	otherIssuer, err := SignHS256(testSecret, "someone-else", "user-1", time.Hour)
	require.NoError(t, err)
	noSubject, err := SignHS256(testSecret, "tradedesk", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"not a bearer token", "Basic " + valid, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong issuer", "Bearer " + otherIssuer, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
	}

	router := hs256Router("tradedesk")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, w))
				return
			}
			assert.JSONEq(t, `{"user_id":"user-1"}`, w.Body.String())
		})
	}
}

func TestHS256MiddlewareWithoutIssuerAcceptsAnyIssuer(t *testing.T) {
	token, err := SignHS256(testSecret, "anything", "user-2", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	hs256Router("").ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEnsureValidToken(t *testing.T) {
	_, err := EnsureValidToken(&config.Config{})
	assert.Error(t, err)

	handler, err := EnsureValidToken(&config.Config{JWTSecret: "s"})
	require.NoError(t, err)
	assert.NotNil(t, handler)

	handler, err = EnsureValidToken(&config.Config{Auth0Domain: "tenant.example.com", Auth0Audience: "https://api"})
	require.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		setupFunc func(*gin.Context)
		wantID    string
		wantCode  string
	}{
		{
			name:      "successfully extracts user ID",
			setupFunc: func(c *gin.Context) { c.Set("user_id", "auth0|123456") },
			wantID:    "auth0|123456",
		},
		{
			name:      "user ID not found in context",
			setupFunc: func(c *gin.Context) {},
			wantCode:  "MISSING_USER_ID",
		},
		{
			name:      "user ID is not a string",
			setupFunc: func(c *gin.Context) { c.Set("user_id", 12345) },
			wantCode:  "INVALID_USER_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			tt.setupFunc(c)

			gotID, err := GetUserID(c)
			if tt.wantCode != "" {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tt.wantCode, authErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, gotID)
		})
	}
}

func TestAuthError(t *testing.T) {
	err := &AuthError{Code: "TEST_ERROR", Message: "Test error message"}
	assert.Equal(t, "Test error message", err.Error())
}
