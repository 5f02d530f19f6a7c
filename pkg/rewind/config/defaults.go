// Package config provides configuration management for the rewind
// recovery CLI.
package config

// Default configuration values for rewind.
const (
	// DefaultPageSize is the event stream page size requested per call.
	DefaultPageSize = 500

	// DefaultWorkers is the batch executor pool size.
	DefaultWorkers = 8

	// DefaultMaxAttempts bounds retries of rate-limited items.
	DefaultMaxAttempts = 5

	// DefaultPolicy is the version selection policy.
	DefaultPolicy = "prior-only"

	// DefaultConfigDirName is the directory name under the XDG config home.
	DefaultConfigDirName = "rewind"
)

// DefaultEventTypes is the audit event-type set queried when none is
// configured.
var DefaultEventTypes = []string{"UPLOAD", "EDIT", "DELETE", "UNDELETE", "MOVE"}

// DefaultItemTypes restricts recovery to files; folder events carry no
// version history to recover.
var DefaultItemTypes = []string{"file"}
