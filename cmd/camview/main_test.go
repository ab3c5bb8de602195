package main

import (
	"context"
	"errors"
	"testing"
)

type fakeApp struct {
	runErr   error
	shutdown int
}

func (a *fakeApp) Run(context.Context) error { return a.runErr }

func (a *fakeApp) Shutdown() { a.shutdown++ }

func TestRunApp(t *testing.T) {
	tests := []struct {
		name     string
		runErr   error
		wantCode int
	}{
		{"clean exit", nil, 0},
		{"runtime error", errors.New("window closed"), 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := &fakeApp{runErr: tc.runErr}
			if code := runApp(context.Background(), app); code != tc.wantCode {
				t.Errorf("exit code = %d, want %d", code, tc.wantCode)
			}
			if app.shutdown != 1 {
				t.Errorf("Shutdown called %d times, want 1", app.shutdown)
			}
		})
	}
}
