package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddlewareEchoesValidID(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "trace-42")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if seen != "trace-42" || res.Header().Get(requestIDHeader) != "trace-42" {
		t.Fatalf("expected echoed id, got ctx=%q header=%q", seen, res.Header().Get(requestIDHeader))
	}
}

func TestRequestIDMiddlewareReplacesInvalidID(t *testing.T) {
	h := requestIDMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "bad id\nwith newline")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	got := res.Header().Get(requestIDHeader)
	if got == "" || got == "bad id\nwith newline" {
		t.Fatalf("expected generated id, got %q", got)
	}
}

func TestAccessLogRecordsStatus(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	rec.WriteHeader(http.StatusTeapot)
	n, _ := rec.Write([]byte("short"))
	if rec.statusCode != http.StatusTeapot || rec.bytesWritten != n {
		t.Fatalf("unexpected recorder state: %+v", rec)
	}
	if clientHost("10.0.0.7:5123") != "10.0.0.7" || clientHost("unix") != "unix" {
		t.Fatalf("unexpected client host parsing")
	}
}
