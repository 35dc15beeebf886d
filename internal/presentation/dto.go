package presentation

import (
	"sort"

	"github.com/zjrosen/vhosts/internal/application/hosts"
	"github.com/zjrosen/vhosts/internal/domain/vhost"
)

// HostDTO is one row of `vhosts list` output.
type HostDTO struct {
	Domain  string     `json:"domain" yaml:"domain"`
	Docroot string     `json:"docroot" yaml:"docroot"`
	Group   string     `json:"group" yaml:"group"`
	Active  bool       `json:"active" yaml:"active"`
	SSL     bool       `json:"ssl" yaml:"ssl"`
	Type    string     `json:"type" yaml:"type"`
	Aliases []AliasDTO `json:"aliases" yaml:"aliases"`
}

// AliasDTO represents an alias for presentation.
type AliasDTO struct {
	ID     string `json:"id" yaml:"id"`
	Value  string `json:"value" yaml:"value"`
	Active bool   `json:"active" yaml:"active"`
}

// ChangeDTO is the printable form of a monitor change.
type ChangeDTO struct {
	Kind     string   `json:"kind"`
	Summary  string   `json:"summary"`
	Added    []string `json:"added,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Active   int      `json:"active"`
	Total    int      `json:"total"`
	Error    string   `json:"error,omitempty"`
}

// FromHost converts a domain host to a DTO.
func FromHost(h vhost.Host) HostDTO {
	aliases := make([]AliasDTO, len(h.Aliases))
	for i, a := range h.Aliases {
		aliases[i] = AliasDTO{ID: a.ID, Value: a.Value, Active: a.Active}
	}
	return HostDTO{
		Domain:  h.Domain,
		Docroot: h.Docroot,
		Group:   h.Group,
		Active:  h.Active,
		SSL:     h.SSL,
		Type:    h.Type,
		Aliases: aliases,
	}
}

// FromRegistry returns the hosts ordered by group then domain. A non-empty group
// restricts the result to that group.
func FromRegistry(reg vhost.Registry, group string) []HostDTO {
	dtos := make([]HostDTO, 0, len(reg))
	for _, domain := range reg.Domains() {
		h := reg[domain]
		if group != "" && h.Group != group {
			continue
		}
		dtos = append(dtos, FromHost(h))
	}
	sort.SliceStable(dtos, func(i, j int) bool {
		return dtos[i].Group < dtos[j].Group
	})
	return dtos
}

// FromChange converts a monitor change; kind is the pubsub event type.
func FromChange(kind string, c hosts.Change) ChangeDTO {
	dto := ChangeDTO{
		Kind:     kind,
		Summary:  c.Summary(),
		Added:    c.Added,
		Removed:  c.Removed,
		Modified: c.Modified,
		Active:   c.Hosts.ActiveCount(),
		Total:    len(c.Hosts),
	}
	if c.Err != nil {
		dto.Error = c.Err.Error()
	}
	return dto
}
