package snapshot

// Config holds configuration for the raw snapshot archive.
type Config struct {
	// Enabled turns per-run snapshot uploads on.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Prefix is the object key prefix snapshots are written under.
	Prefix string `mapstructure:"prefix" default:"snapshots"`
}
