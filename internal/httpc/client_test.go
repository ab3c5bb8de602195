package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/pause":
			var req struct {
				Paused bool `json:"paused"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]bool{"paused": req.Paused})
		case "/api/crop":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid crop region"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	var out struct {
		Paused bool `json:"paused"`
	}
	if err := DoJSON(ctx, http.MethodPost, srv.URL+"/api/pause", map[string]bool{"paused": true}, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if !out.Paused {
		t.Error("response not decoded")
	}

	tests := []struct {
		name string
		path string
		code int
		msg  string
	}{
		{"error body", "/api/crop", http.StatusBadRequest, "invalid crop region"},
		{"no body", "/missing", http.StatusNotFound, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := DoJSON(ctx, http.MethodGet, srv.URL+tc.path, nil, nil)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *StatusError", err)
			}
			if se.Code != tc.code || se.Message != tc.msg {
				t.Errorf("got %d %q, want %d %q", se.Code, se.Message, tc.code, tc.msg)
			}
		})
	}
}
