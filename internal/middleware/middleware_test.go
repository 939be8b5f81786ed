package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/persistorai/spacestore/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Prometheus("/metrics"))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.RequestIDKey))
	})

	return r
}

func TestRequestID_Generated(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))

	id := w.Header().Get(middleware.RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("response id %q is not a UUID", id)
	}

	if w.Body.String() != id {
		t.Errorf("context id %q, header id %q", w.Body.String(), id)
	}
}

func TestRequestID_ClientValue(t *testing.T) {
	tests := []struct {
		name   string
		client string
		kept   bool
	}{
		{"uuid kept", "6f1c2a34-8e0b-4d7e-9a51-2b3c4d5e6f70", true},
		{"garbage replaced", "not-an-id\r\nX-Evil: 1", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
			req.Header.Set(middleware.RequestIDHeader, tc.client)

			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			got := w.Header().Get(middleware.RequestIDHeader)
			if (got == tc.client) != tc.kept {
				t.Errorf("id = %q, client %q, kept want %v", got, tc.client, tc.kept)
			}
		})
	}
}
