package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// zlog is an optional structured logger. If unset, the zerolog global
// logger is used.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func reqlessLogger() *zerolog.Logger {
	if zlog != nil {
		return zlog
	}
	return &log.Logger
}

// requestLogger tags the HTTP logger with the chi request id.
func requestLogger(r *http.Request) zerolog.Logger {
	l := *reqlessLogger()
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return l
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("VOXD_REQUEST_LOG"))

// SetRequestLogLevel sets the default per-request level (off, error, info, debug).
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logStart records the beginning of a synthesis request.
func logStart(r *http.Request, fields map[string]any) {
	if requestLogLevel(r) < LevelInfo {
		return
	}
	l := requestLogger(r)
	l.Info().Str("path", r.URL.Path).Fields(fields).Msg("synthesis start")
}

// logEnd records the outcome of a synthesis request. Failures are logged
// from LevelError up, successes from LevelInfo up.
func logEnd(r *http.Request, status int, start time.Time, err error) {
	lvl := requestLogLevel(r)
	if lvl == LevelOff || (err == nil && lvl < LevelInfo) {
		return
	}
	l := requestLogger(r)
	ev := l.Info()
	if err != nil {
		ev = l.Error().Err(err)
	}
	ev.Int("status", status).Dur("dur", time.Since(start)).Msg("synthesis end")
}
