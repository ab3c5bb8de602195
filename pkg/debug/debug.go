// Package debug provides global debug logging flags
package debug

import "fmt"

// Enabled controls whether debug logging is active
var Enabled bool

// Events controls whether per-event logs are shown (mouse moves, key codes).
// Use --debug-events to enable these very verbose logs
var Events bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// EventLog prints a message only if event debug mode is enabled
func EventLog(format string, args ...interface{}) {
	if Events {
		fmt.Printf(format, args...)
	}
}
