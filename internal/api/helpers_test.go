package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)

	return l
}

// fakeChecker returns the configured errors.
type fakeChecker struct {
	health error
	schema error
}

func (f *fakeChecker) HealthCheck(context.Context) error { return f.health }
func (f *fakeChecker) SchemaCheck(context.Context) error { return f.schema }

// doRequest performs a GET against h and returns the recorder.
func doRequest(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	return w
}
