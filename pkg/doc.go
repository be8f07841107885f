// Package pkg provides shared utilities for the pmausb driver.
//
// This package contains functionality used across the packet memory,
// endpoint register, control transfer and class layers:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for driver and protocol failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentControl, "address applied", "address", 5)
//
// Per-packet events are logged at [LevelTrace], below debug, so they stay
// hidden unless the level is lowered explicitly.
//
// # Errors
//
// Request handlers report failures with sentinel values. The control
// transfer state machine turns any of them into a STALL handshake:
//
//	if errors.Is(err, pkg.ErrInvalidRequest) {
//	    // stall EP0
//	}
package pkg
