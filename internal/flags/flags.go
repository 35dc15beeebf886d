// Package flags provides feature flag support for behaviour that differs
// between installations. Flags are read-only after initialization and any flag
// absent from configuration is disabled.
package flags

import (
	"maps"
	"sort"

	"github.com/zjrosen/vhosts/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagDirectWrite makes the store overwrite hosts.json in place instead of
	// writing a temp file and renaming it. Needed when hosts.json is a bind mount
	// or a symlink whose directory is not writable.
	FlagDirectWrite = "direct-write"

	// FlagStrictDecode raises skipped malformed host entries from debug to warn level.
	FlagStrictDecode = "strict-decode"
)

// Descriptions documents every known flag for `vhosts flags`.
var Descriptions = map[string]string{
	FlagDirectWrite:  "overwrite hosts.json in place instead of temp file + rename",
	FlagStrictDecode: "log skipped malformed host entries as warnings",
}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map.
// If flags is nil, an empty registry is created (all flags disabled).
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: make(map[string]bool, len(flags))}
	maps.Copy(r.flags, flags)
	for name := range r.flags {
		if _, known := Descriptions[name]; !known {
			log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
		}
	}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(r.flags), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled.
// Returns false for unknown flags and on a nil registry.
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	return r.flags[name]
}

// All returns a copy of all flags.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}

// Names returns the known flag names sorted alphabetically.
func Names() []string {
	names := make([]string, 0, len(Descriptions))
	for name := range Descriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
