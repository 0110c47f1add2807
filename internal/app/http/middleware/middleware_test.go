package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var teapot = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func TestInternalAuth(t *testing.T) {
	h := InternalAuth("secret")(teapot)

	for token, want := range map[string]int{"": 401, "wrong": 401, "secret": 418} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Internal-Token", token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "token %q", token)
	}

	rec := httptest.NewRecorder()
	InternalAuth("")(teapot).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS("https://app.test")(teapot).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/quotations", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogging(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	rec := httptest.NewRecorder()

	Logging(log)(teapot).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/quotations", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 418, entry.Data["status"])
	assert.Equal(t, "/v1/quotations", entry.Data["path"])
}
