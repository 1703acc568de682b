package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestChannelFromHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(Channel())
	e.POST("/orders", func(c *gin.Context) {
		c.String(http.StatusOK, GetChannel(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("X-Sales-Channel", "amazon_fba")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "amazon_fba", rec.Body.String())
}

func TestChannelDefaultsToWebsite(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(Channel())
	e.POST("/orders", func(c *gin.Context) {
		c.String(http.StatusOK, GetChannel(c.Request.Context()))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))

	require.Equal(t, "website_payment", rec.Body.String())
}
