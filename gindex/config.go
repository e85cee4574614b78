package gindex

import "time"

// Config tunes an Indexer.
type Config struct {
	// Timeout bounds every collective round. Zero waits until the context
	// passed to a call is done.
	Timeout time.Duration `mapstructure:"timeout"`
	// Deduplicate requests each distinct element once per owner. Results are
	// identical either way; it only trades plan memory for message size.
	Deduplicate bool `mapstructure:"deduplicate"`
	// VerifyTable cross-checks the distribution table across workers before
	// building the plan.
	VerifyTable bool `mapstructure:"verify-table"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		VerifyTable: true,
	}
}
