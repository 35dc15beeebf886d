package vhost

import (
	"fmt"
	"sort"
)

// Registry maps a domain to its host record. Every key equals the Domain of its value.
type Registry map[string]Host

// NewRegistry creates an empty registry.
func NewRegistry() Registry {
	return make(Registry)
}

// Clone returns a deep copy of the registry.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for domain, host := range r {
		out[domain] = host.Clone()
	}
	return out
}

// Get returns the host for domain or a *NotFoundError.
func (r Registry) Get(domain string) (Host, error) {
	host, ok := r[domain]
	if !ok {
		return Host{}, &NotFoundError{Domain: domain}
	}
	return host, nil
}

// Put stores host under its own domain.
func (r Registry) Put(host Host) {
	r[host.Domain] = host
}

// Domains returns all domains sorted alphabetically.
func (r Registry) Domains() []string {
	domains := make([]string, 0, len(r))
	for domain := range r {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// Groups returns the distinct group labels sorted alphabetically.
func (r Registry) Groups() []string {
	seen := make(map[string]bool)
	groups := make([]string, 0)
	for _, host := range r {
		if !seen[host.Group] {
			seen[host.Group] = true
			groups = append(groups, host.Group)
		}
	}
	sort.Strings(groups)
	return groups
}

// InGroup returns the hosts belonging to group, sorted by domain.
func (r Registry) InGroup(group string) []Host {
	hosts := make([]Host, 0)
	for _, domain := range r.Domains() {
		if r[domain].Group == group {
			hosts = append(hosts, r[domain])
		}
	}
	return hosts
}

// Normalize returns a copy keyed consistently: each host takes its map key as
// its Domain, alias ids are filled in and value-less aliases are dropped.
// It fails if any key is not a usable domain.
func (r Registry) Normalize() (Registry, error) {
	out := make(Registry, len(r))
	for key, host := range r {
		if err := ValidateDomain(key); err != nil {
			return nil, fmt.Errorf("normalizing registry: %w", err)
		}
		host = host.Clone()
		host.Domain = key
		host.Aliases = normalizeAliases(host.Aliases)
		out[key] = host
	}
	return out, nil
}

// SetAllActive sets the active flag of every host and reports how many changed.
func (r Registry) SetAllActive(active bool) int {
	changed := 0
	for domain, host := range r {
		if host.Active != active {
			host.Active = active
			r[domain] = host
			changed++
		}
	}
	return changed
}

// ActiveCount returns the number of enabled hosts.
func (r Registry) ActiveCount() int {
	n := 0
	for _, host := range r {
		if host.Active {
			n++
		}
	}
	return n
}
