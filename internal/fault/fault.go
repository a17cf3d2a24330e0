// Package fault defines the error taxonomy shared by the ground station.
//
// Errors are sentinels; components wrap them with context using
// fmt.Errorf("...: %w", ...) and callers test with errors.Is.
package fault

import "errors"

var (
	// ErrTransportOpenFailed is returned when the serial link cannot be opened.
	ErrTransportOpenFailed = errors.New("transport open failed")
	// ErrTransportReadError marks a transient read failure. The ingest loop
	// reports it, backs off and retries.
	ErrTransportReadError = errors.New("transport read error")
	// ErrTransportWriteFailed is returned when an uplink write does not complete.
	ErrTransportWriteFailed = errors.New("transport write failed")
	// ErrDecodeRejected marks a malformed, short or unparseable frame.
	ErrDecodeRejected = errors.New("decode rejected")
	// ErrStorageUnavailable is returned when recording cannot start.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageWriteFailed deactivates recording; the session continues.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrNotConnected is returned for uplink commands sent without a link.
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidStateTransition is returned for requests that do not fit the
	// current state, e.g. stopping a recording that was never started.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
