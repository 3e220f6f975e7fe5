package logging

import (
	"log/slog"
	"strings"
)

// LevelUnknown is returned by LevelFromString when the provided string does
// not map to any known level
const LevelUnknown = slog.Level(99)

// LevelFromString maps a (case-insensitive) string to its slog.Level
// equivalent, including the package's custom fatal / panic levels
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case debugLevel:
		return LevelDebug
	case infoLevel:
		return LevelInfo
	case warnLevel:
		return LevelWarn
	case errorLevel:
		return LevelError
	case fatalLevel:
		return LevelFatal
	case panicLevel:
		return LevelPanic
	default:
		return LevelUnknown
	}
}

// Encoding enumerates the supported log output encodings
type Encoding string

// Supported encodings
const (
	EncodingJSON   Encoding = "json"
	EncodingLogfmt Encoding = "logfmt"
	EncodingPlain  Encoding = "plain"
)
