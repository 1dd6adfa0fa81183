// Package config loads modpolyfill settings from .modpolyfill.yaml, the
// environment and defaults.
package config

// Canonical import defaults.
const (
	DefaultCanonicalModule = "ember"
	DefaultCanonicalName   = "Ember"
)

// Mapping table defaults.
const (
	DefaultMappingsPath     = ""
	DefaultMappingsValidate = true
)

// Transform defaults. Zero workers means one per CPU.
const (
	DefaultTransformWorkers     = 0
	DefaultTransformMaxFileSize = "1MB"
)

// DefaultTransformExtensions are the file extensions collected from directories.
var DefaultTransformExtensions = []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx"}

// Server defaults.
const (
	DefaultServerHost         = "127.0.0.1"
	DefaultServerPort         = 8787
	DefaultServerCacheSize    = 512
	DefaultServerReadTimeout  = "30s"
	DefaultServerWriteTimeout = "30s"
	DefaultServerIdleTimeout  = "60s"
	DefaultServerMaxBody      = "4MB"
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = FormatText
)

// Observability defaults.
const (
	DefaultObservabilitySampleRatio = 1.0
	DefaultObservabilityShutdownSec = 5
)
