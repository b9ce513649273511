package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"racer-platform/internal/checkout"
	"racer-platform/internal/session"
)

// idParam parses a positive int64 path parameter, writing a 400 when it is not one.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// viewer returns the authenticated account, writing a 401 when there is none.
func viewer(c *gin.Context) (session.Viewer, bool) {
	v, ok := session.From(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return v, ok
}

// writeCheckoutError maps checkout errors to HTTP responses.
func writeCheckoutError(c *gin.Context, err error) {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, checkout.ErrConfiguration):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Monetization is currently disabled."})
	case errors.Is(err, checkout.ErrCheckoutInitiationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway error, please try again."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
	}
}
