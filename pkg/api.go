package dupeprune

import (
	"slices"
	"strings"
)

// InitLogging applies a verbose configuration to the package loggers
func InitLogging(cfg *VerboseConfig) {
	SetVerboseLevel(cfg.Level)
	SetDebugFlags(cfg.Debug)
	if flags := EnabledDebugFlags(); len(flags) > 0 {
		VerboseLog(1, "Debug flags enabled: %s", strings.Join(flags, ","))
	}
}

// EnabledDebugFlags returns the debug flags currently switched on, sorted
func EnabledDebugFlags() []string {
	var flags []string
	for name, on := range debugFlags {
		if on {
			flags = append(flags, name)
		}
	}
	slices.Sort(flags)
	return flags
}
