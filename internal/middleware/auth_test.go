// internal/middleware/auth_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockmart/blockmart-backend/internal/utils"
)

func setupProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/protected", AuthRequired(), func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	r.GET("/admin", AuthRequired(), AdminRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/creator", AuthRequired(), CreatorRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/optional", OptionalAuth(), func(c *gin.Context) {
		_, authed := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"authed": authed})
	})

	return r
}

func doRequest(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredRejectsMissingHeader(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := setupProtectedRouter()

	w := doRequest(r, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsMalformedHeader(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := setupProtectedRouter()

	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Token abcdef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := setupProtectedRouter()

	token, err := utils.GenerateJWT(uuid.New(), "alice", "buyer", 1)
	require.NoError(t, err)

	w := doRequest(r, "/protected", token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := setupProtectedRouter()

	buyerToken, err := utils.GenerateJWT(uuid.New(), "bob", "buyer", 1)
	require.NoError(t, err)
	adminToken, err := utils.GenerateJWT(uuid.New(), "root", "admin", 1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, doRequest(r, "/admin", buyerToken).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "/admin", adminToken).Code)
}

func TestCreatorRequiredAllowsCreatorAndAdmin(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := setupProtectedRouter()

	buyerToken, err := utils.GenerateJWT(uuid.New(), "bob", "buyer", 1)
	require.NoError(t, err)
	creatorToken, err := utils.GenerateJWT(uuid.New(), "carol", "creator", 1)
	require.NoError(t, err)
	adminToken, err := utils.GenerateJWT(uuid.New(), "root", "admin", 1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, doRequest(r, "/creator", buyerToken).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "/creator", creatorToken).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "/creator", adminToken).Code)
}

func TestOptionalAuthPassesThroughWithoutToken(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := setupProtectedRouter()

	w := doRequest(r, "/optional", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authed":false`)
}

func TestOptionalAuthIgnoresInvalidToken(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := setupProtectedRouter()

	w := doRequest(r, "/optional", "garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authed":false`)
}
