package vhost

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Field defaults applied when a host entry omits a field or stores it with the wrong type.
const (
	DefaultGroup = "Uncategorized"
	DefaultType  = "static"
)

const aliasIDPrefix = "alias_"

// Alias is an alternate hostname served by the same virtual host.
type Alias struct {
	ID     string `json:"id" yaml:"id"`
	Value  string `json:"value" yaml:"value"`
	Active bool   `json:"active" yaml:"active"`
}

// NewAlias returns an active alias with a freshly generated id.
func NewAlias(value string) Alias {
	return Alias{ID: NewAliasID(), Value: value, Active: true}
}

// NewAliasID generates a unique alias identifier.
func NewAliasID() string {
	return aliasIDPrefix + uuid.NewString()
}

// Host is a single virtual host record.
type Host struct {
	Domain  string  `json:"domain" yaml:"domain"`
	Docroot string  `json:"docroot" yaml:"docroot"`
	Aliases []Alias `json:"aliases" yaml:"aliases"`
	Group   string  `json:"group" yaml:"group"`
	Active  bool    `json:"active" yaml:"active"`
	SSL     bool    `json:"ssl" yaml:"ssl"`
	Type    string  `json:"type" yaml:"type"`
}

// NewHost returns a host with every field at its default.
func NewHost(domain string) Host {
	return Host{
		Domain:  domain,
		Aliases: []Alias{},
		Group:   DefaultGroup,
		Active:  true,
		SSL:     true,
		Type:    DefaultType,
	}
}

// Clone returns a deep copy of the host.
func (h Host) Clone() Host {
	aliases := make([]Alias, len(h.Aliases))
	copy(aliases, h.Aliases)
	h.Aliases = aliases
	return h
}

// AliasIndex returns the position of the alias with the given id, or -1.
func (h Host) AliasIndex(id string) int {
	for i, a := range h.Aliases {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// ActiveAliases returns the values of all enabled aliases in insertion order.
func (h Host) ActiveAliases() []string {
	values := make([]string, 0, len(h.Aliases))
	for _, a := range h.Aliases {
		if a.Active {
			values = append(values, a.Value)
		}
	}
	return values
}

// normalizeAliases fills in missing ids and drops aliases without a value.
func normalizeAliases(aliases []Alias) []Alias {
	out := make([]Alias, 0, len(aliases))
	for _, a := range aliases {
		if a.Value == "" {
			continue
		}
		if a.ID == "" {
			a.ID = NewAliasID()
		}
		out = append(out, a)
	}
	return out
}

// ValidateDomain rejects names that cannot be used as a registry key.
func ValidateDomain(domain string) error {
	if strings.TrimSpace(domain) == "" {
		return fmt.Errorf("%w: domain is empty", ErrInvalidDomain)
	}
	if strings.IndexFunc(domain, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidDomain, domain)
	}
	if strings.ContainsAny(domain, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidDomain, domain)
	}
	return nil
}
