package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"course-commerce/internal/service"
	"course-commerce/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{}

	tests := []struct {
		err    error
		status int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrInvalidSignature, http.StatusUnauthorized},
		{service.ErrEmailTaken, http.StatusConflict},
		{service.ErrOrderNotPayable, http.StatusConflict},
		{service.ErrInsufficientSeats, http.StatusConflict},
		{store.ErrInsufficientSeats, http.StatusConflict},
		{service.ErrLinkRevoked, http.StatusGone},
		{service.ErrEnrollmentInactive, http.StatusGone},
		{service.ErrCartEmpty, http.StatusUnprocessableEntity},
		{service.ErrCourseUnavailable, http.StatusUnprocessableEntity},
		{service.ErrSessionMismatch, http.StatusUnprocessableEntity},
		{service.ErrCartOwnership, http.StatusUnprocessableEntity},
		{service.ErrWebhookBusy, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		h.writeError(c, tt.err)
		assert.Equal(t, tt.status, w.Code, "error %v", tt.err)
	}
}

func TestPathID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		raw   string
		id    int64
		valid bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: tt.raw}}

		id, err := pathID(c, "id")
		if tt.valid {
			assert.NoError(t, err, "raw %q", tt.raw)
			assert.Equal(t, tt.id, id)
		} else {
			assert.Error(t, err, "raw %q", tt.raw)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		}
	}
}
