// Package logging provides the structured logger used across the media
// call subsystem. Every component takes a logger value rather than
// reaching for a package-level global, so a host embedding this module
// can route call/stream diagnostics into its own sink.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the base logger for the media call subsystem, writing
// JSON lines to w (os.Stderr when w is nil).
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).With().Timestamp().Str("component", "mediacall").Logger()
}

// Nop returns a logger that discards everything, for tests and
// callers that don't care about diagnostics.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ForCall returns a sub-logger tagged with the dialog's Call-ID, the
// field every log line in the signalling path carries.
func ForCall(base zerolog.Logger, callID string) zerolog.Logger {
	return base.With().Str("call_id", callID).Logger()
}

// ForStream further tags a call logger with the stream id
// ("audio", "video", "data", "applicationsharing").
func ForStream(base zerolog.Logger, streamID string) zerolog.Logger {
	return base.With().Str("stream_id", streamID).Logger()
}
