package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quillnote/quill/internal/testutil"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:5000", want: "192.0.2.1"},
		{
			name:       "x-real-ip trusted",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			trustProxy: true,
			want:       "198.51.100.9",
		},
		{
			name:       "x-real-ip ignored when untrusted",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "10.0.0.1",
		},
		{
			name:       "x-forwarded-for first ip",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"},
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "garbage header falls back",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r, tt.trustProxy))
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panics := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(testutil.DiscardLogger())(panics)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestLoggingWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	// Must implement Flusher for SSE and expose the inner writer.
	var _ http.Flusher = lw
	lw.Flush()
	assert.True(t, rec.Flushed)
	assert.Same(t, http.ResponseWriter(rec), lw.Unwrap())
}
