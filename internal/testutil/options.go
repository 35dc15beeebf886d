package testutil

import "github.com/zjrosen/vhosts/internal/domain/vhost"

// HostOption configures a host during builder setup.
type HostOption func(*vhost.Host)

// Docroot sets the host docroot.
func Docroot(path string) HostOption {
	return func(h *vhost.Host) { h.Docroot = path }
}

// Group sets the host group.
func Group(group string) HostOption {
	return func(h *vhost.Host) { h.Group = group }
}

// Inactive disables the host.
func Inactive() HostOption {
	return func(h *vhost.Host) { h.Active = false }
}

// NoSSL disables TLS for the host.
func NoSSL() HostOption {
	return func(h *vhost.Host) { h.SSL = false }
}

// Type sets the host type (static, proxy, ...).
func Type(t string) HostOption {
	return func(h *vhost.Host) { h.Type = t }
}

// Alias appends an alias with a deterministic id derived from its position.
func Alias(value string, active bool) HostOption {
	return func(h *vhost.Host) {
		h.Aliases = append(h.Aliases, vhost.Alias{
			ID:     aliasID(h.Domain, len(h.Aliases)),
			Value:  value,
			Active: active,
		})
	}
}
