package malog

import (
	"os"

	charm "github.com/charmbracelet/log"
)

// CharmSink adapts github.com/charmbracelet/log as a Bus Sink. This is the
// default non-realtime sink: it writes to an io.Writer (stderr by default)
// and is therefore appropriate only on the control thread, matching the
// teacher's own use of structured, leveled logging for everything off the
// audio path (internal/audio/capture.go, playback.go logged with the
// standard log package; charmbracelet/log generalizes that to leveled,
// structured output without changing the call sites' intent).
type CharmSink struct {
	logger *charm.Logger
}

// NewCharmSink builds a CharmSink writing to stderr with the given minimum
// level. Pass LevelDebug during development, LevelInfo or LevelWarn in
// production.
func NewCharmSink(minLevel Level) *CharmSink {
	logger := charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
		Level:           toCharmLevel(minLevel),
	})
	return &CharmSink{logger: logger}
}

// Log implements Sink. not realtime-safe: charmbracelet/log takes an
// internal mutex and writes to an io.Writer; never install this sink where
// it could be reached from a device's data callback. Use RingSink there
// instead and drain it on the control thread.
func (s *CharmSink) Log(level Level, message string, kv ...any) {
	switch level {
	case LevelDebug:
		s.logger.Debug(message, kv...)
	case LevelInfo:
		s.logger.Info(message, kv...)
	case LevelWarn:
		s.logger.Warn(message, kv...)
	case LevelError:
		s.logger.Error(message, kv...)
	default:
		s.logger.Info(message, kv...)
	}
}

func toCharmLevel(l Level) charm.Level {
	switch l {
	case LevelDebug:
		return charm.DebugLevel
	case LevelInfo:
		return charm.InfoLevel
	case LevelWarn:
		return charm.WarnLevel
	case LevelError:
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}
