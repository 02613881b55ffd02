// internal/handlers/purchase_test.go
package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// Exercises the request validation layer in front of the checkout service.
// Everything here fails before the service is reached, so no database or
// gateway is needed.
type CheckoutValidationTestSuite struct {
	suite.Suite
	router *gin.Engine
}

func (suite *CheckoutValidationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	handler := NewPurchaseHandler(nil, nil)

	authed := suite.router.Group("", func(c *gin.Context) {
		c.Set("user_id", uuid.New().String())
		c.Set("user_type", "buyer")
		c.Next()
	})
	authed.POST("/checkout", handler.CreateCheckout)

	// No identity in context on this route.
	suite.router.POST("/anonymous/checkout", handler.CreateCheckout)
}

func (suite *CheckoutValidationTestSuite) postJSON(path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *CheckoutValidationTestSuite) TestRejectsAnonymousCheckout() {
	w := suite.postJSON("/anonymous/checkout", `{"block_ids":["`+uuid.New().String()+`"],"license_type":"personal"}`)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *CheckoutValidationTestSuite) TestRejectsMalformedBody() {
	w := suite.postJSON("/checkout", `{"block_ids": not-json`)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *CheckoutValidationTestSuite) TestRejectsNonUUIDBlockIDs() {
	w := suite.postJSON("/checkout", `{"block_ids":["definitely-not-a-uuid"],"license_type":"personal"}`)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *CheckoutValidationTestSuite) TestRejectsEmptyCart() {
	w := suite.postJSON("/checkout", `{"block_ids":[],"license_type":"personal"}`)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *CheckoutValidationTestSuite) TestRejectsMissingLicenseType() {
	w := suite.postJSON("/checkout", `{"block_ids":["`+uuid.New().String()+`"]}`)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func TestCheckoutValidationTestSuite(t *testing.T) {
	suite.Run(t, new(CheckoutValidationTestSuite))
}
