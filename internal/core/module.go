// Package core provides the module system foundation for relayctl: a global
// module registry, the Configure → Provision → Validate → Start → Stop
// lifecycle, and a service registry modules use to find each other.
package core

// ModuleID is the namespaced identifier of a module, e.g. "channel.telegram".
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return ""
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is the minimal interface every module implements.
type Module interface {
	ModuleInfo() ModuleInfo
}
