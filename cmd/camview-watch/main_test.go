package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	var lastPause *bool
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/pause":
			var req pauseRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			lastPause = req.Paused
			json.NewEncoder(w).Encode(map[string]any{
				"paused": req.Paused != nil && *req.Paused, "source": "0",
				"fps": 10, "timing": map[string]float64{"read": 1.5},
			})
		case "/api/snapshot":
			w.Write([]byte(`{"output":"output-2026-10-17-10:00:00.png","edges":"edges-2026-10-17-10:00:00.png","width":640,"height":480,"taken":"2026-10-17T10:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	tests := []struct {
		command   string
		wantHit   string
		wantPause *bool
		wantErr   bool
	}{
		{"pause", "POST /api/pause", ptr(true), false},
		{"resume", "POST /api/pause", ptr(false), false},
		{"toggle", "POST /api/pause", nil, false},
		{"snapshot", "POST /api/snapshot", nil, false},
		{"rewind", "", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.command, func(t *testing.T) {
			hits, lastPause = nil, nil
			err := run(addr, tc.command)
			if (err != nil) != tc.wantErr {
				t.Fatalf("run(%q) = %v, wantErr %v", tc.command, err, tc.wantErr)
			}
			if tc.wantErr {
				if len(hits) != 0 {
					t.Errorf("unknown command reached the server: %v", hits)
				}
				return
			}
			if len(hits) != 1 || hits[0] != tc.wantHit {
				t.Errorf("requests = %v, want [%s]", hits, tc.wantHit)
			}
			if (lastPause == nil) != (tc.wantPause == nil) ||
				(lastPause != nil && *lastPause != *tc.wantPause) {
				t.Errorf("paused field = %v, want %v", lastPause, tc.wantPause)
			}
		})
	}
}

func ptr(b bool) *bool { return &b }
