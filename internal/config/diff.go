package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked — Postgres.DSN and Memory's
// structural settings require a process restart and are not diffed here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	WeightsChanged bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Memory.Weights != new.Memory.Weights {
		d.WeightsChanged = true
	}

	return d
}
