package config

import "time"

const (
	// DefaultCommand is the external deployment CLI resolved from PATH.
	DefaultCommand = "deployctl"

	// DefaultQueryTimeout bounds read-only calls (release lists, health).
	DefaultQueryTimeout = 30 * time.Second

	// DefaultPromoteTimeout bounds promotions, which are long-running.
	DefaultPromoteTimeout = 300 * time.Second
)

// DefaultLogDir returns the default audit log directory path.
func DefaultLogDir() string {
	return "~/.deploygate/logs"
}
