package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum JSON request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

const defaultWriteTimeout = 30 * time.Second

// writeTimeout bounds each streamed write to a client.
var writeTimeout = defaultWriteTimeout

// SetWriteTimeout configures the per-write deadline of streaming responses.
func SetWriteTimeout(d time.Duration) {
	if d <= 0 {
		writeTimeout = defaultWriteTimeout
		return
	}
	writeTimeout = d
}

const defaultMaxUploadBytes = 25 << 20

// maxUploadBytes bounds multipart bodies (voice uploads, /api/tts).
var maxUploadBytes int64 = defaultMaxUploadBytes

// SetMaxUploadBytes configures the multipart body limit.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
		return
	}
	maxUploadBytes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
