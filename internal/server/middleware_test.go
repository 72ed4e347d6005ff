package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nnaudify/audify/internal/shared"
)

func TestLoggingForwardsFlush(t *testing.T) {
	var flushable bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		flushable = ok
		w.Write([]byte("chunk"))
		if ok {
			f.Flush()
		}
	})

	wrapped := Logging(shared.NewLogger(io.Discard))(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy/vid01", nil))

	if !flushable {
		t.Fatal("wrapped writer does not implement http.Flusher")
	}
	if !rec.Flushed {
		t.Error("Flush() did not reach the underlying writer")
	}
}

func TestLoggingRecordsStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	wrapped := Logging(shared.NewLogger(io.Discard))(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight request reached the handler")
	})

	wrapped := CORS()(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/search", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
