package demux

// configError is a demux-pool-level ConfigError (§7): a sample-sheet or
// override_cycles misconfiguration, always non-fatal to the pool as a
// whole and scoped to the tile it was raised for.
type configError struct{ msg string }

func (e *configError) Error() string { return "demux: config error: " + e.msg }

func errConfig(msg string) error { return &configError{msg: msg} }
