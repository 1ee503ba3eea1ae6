package logger

import "go.uber.org/zap/zapcore"

// Counts of the -v flag.
const (
	VerbosityUser  = 0 // warnings and errors
	VerbosityInfo  = 1 // -v: startup, resource loading, connections
	VerbosityDebug = 2 // -vv: per-request classification and dispatch
	VerbosityTrace = 3 // -vvv: JSON-RPC message trace
)

// VerbosityToLevel maps a -v count to a zap level: none is Warn, -v is Info,
// anything more is Debug.
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ShouldLogTrace reports whether protocol messages should be traced.
func ShouldLogTrace(verbosity int) bool {
	return verbosity >= VerbosityTrace
}

func LevelName(verbosity int) string {
	switch {
	case verbosity < VerbosityUser:
		return "Unknown"
	case verbosity == VerbosityUser:
		return "User"
	case verbosity == VerbosityInfo:
		return "Info (-v)"
	case verbosity == VerbosityDebug:
		return "Debug (-vv)"
	default:
		return "Trace (-vvv)"
	}
}
