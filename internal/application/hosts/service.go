package hosts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
	"github.com/zjrosen/vhosts/internal/tracing"
)

// Repository persists the registry. filestore.Repository is the production implementation.
type Repository interface {
	Path() string
	// Load reads the registry without locking.
	Load(ctx context.Context) (vhost.Registry, error)
	// Update runs fn on the current registry under the lock and saves the result
	// unless fn returns an error.
	Update(ctx context.Context, fn func(vhost.Registry) error) error
	// Replace overwrites the registry under the lock.
	Replace(ctx context.Context, reg vhost.Registry) error
	// Delete removes one host under the lock.
	Delete(ctx context.Context, domain string) error
}

// errUnchanged aborts an Update whose mutation turned out to be a no-op.
var errUnchanged = errors.New("registry unchanged")

// Service is the query/mutation API over the hosts registry.
type Service struct {
	repo   Repository
	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTracer records a span per operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a Service over repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the hosts file the service operates on.
func (s *Service) Path() string {
	return s.repo.Path()
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(tracing.AttrHostsFile, s.repo.Path()))
	return tracing.StartOp(ctx, s.tracer, op, attrs...)
}

// ListHosts returns the registry as currently stored on disk.
func (s *Service) ListHosts(ctx context.Context) (reg vhost.Registry, err error) {
	ctx, span := s.start(ctx, "list")
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	reg, err = s.repo.Load(ctx)
	if err != nil {
		log.ErrorErr(log.CatRegistry, "List hosts failed", err, "path", s.repo.Path())
		return nil, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrHostCount, len(reg)))
	return reg, nil
}

// ReplaceAll overwrites the registry with reg. Keys are authoritative: each host
// takes its key as Domain, so the stored file always satisfies key == domain.
func (s *Service) ReplaceAll(ctx context.Context, reg vhost.Registry) (err error) {
	ctx, span := s.start(ctx, "replace_all", attribute.Int(tracing.AttrHostCount, len(reg)))
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	normalized, err := reg.Normalize()
	if err != nil {
		return err
	}
	if err := s.repo.Replace(ctx, normalized); err != nil {
		log.ErrorErr(log.CatRegistry, "Replace registry failed", err, "hosts", len(normalized))
		return err
	}
	log.Info(log.CatRegistry, "Replaced registry", "hosts", len(normalized))
	return nil
}

// DeleteOne removes domain. It fails with a *vhost.NotFoundError when absent,
// leaving the file untouched.
func (s *Service) DeleteOne(ctx context.Context, domain string) (err error) {
	ctx, span := s.start(ctx, "delete", attribute.String(tracing.AttrDomain, domain))
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	if err := s.repo.Delete(ctx, domain); err != nil {
		return err
	}
	log.Info(log.CatRegistry, "Deleted host", "domain", domain)
	return nil
}

// ToggleActive flips the active flag of domain and returns the updated host.
func (s *Service) ToggleActive(ctx context.Context, domain string) (host vhost.Host, err error) {
	ctx, span := s.start(ctx, "toggle", attribute.String(tracing.AttrDomain, domain))
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	err = s.repo.Update(ctx, func(reg vhost.Registry) error {
		h, err := reg.Get(domain)
		if err != nil {
			return err
		}
		h.Active = !h.Active
		reg.Put(h)
		host = h
		return nil
	})
	if err != nil {
		return vhost.Host{}, err
	}
	span.SetAttributes(attribute.Bool(tracing.AttrActive, host.Active))
	log.Info(log.CatRegistry, "Toggled host", "domain", domain, "active", host.Active)
	return host, nil
}

// SetAllActive sets every host's active flag to active and reports how many
// hosts changed. Nothing is written when no host changes.
func (s *Service) SetAllActive(ctx context.Context, active bool) (changed int, err error) {
	ctx, span := s.start(ctx, "set_all_active", attribute.Bool(tracing.AttrActive, active))
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	err = s.update(ctx, func(reg vhost.Registry) error {
		changed = reg.SetAllActive(active)
		if changed == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrChanged, changed))
	log.Info(log.CatRegistry, "Set all hosts active", "active", active, "changed", changed)
	return changed, nil
}

// UpsertHost stores host under its domain, adding it or replacing the existing
// record. It reports whether the host was newly created. Empty group and type
// take their defaults.
func (s *Service) UpsertHost(ctx context.Context, host vhost.Host) (created bool, err error) {
	ctx, span := s.start(ctx, "upsert", attribute.String(tracing.AttrDomain, host.Domain))
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	host, err = prepareHost(host)
	if err != nil {
		return false, err
	}

	err = s.repo.Update(ctx, func(reg vhost.Registry) error {
		_, exists := reg[host.Domain]
		created = !exists
		reg.Put(host)
		return nil
	})
	if err != nil {
		return false, err
	}
	log.Info(log.CatRegistry, "Upserted host", "domain", host.Domain, "created", created)
	return created, nil
}

// RenameDomain moves the host at from to the key to, keeping every other field.
func (s *Service) RenameDomain(ctx context.Context, from, to string) (err error) {
	ctx, span := s.start(ctx, "rename",
		attribute.String(tracing.AttrDomain, from),
		attribute.String(tracing.AttrNewDomain, to),
	)
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	if err := vhost.ValidateDomain(to); err != nil {
		return err
	}

	err = s.update(ctx, func(reg vhost.Registry) error {
		host, err := reg.Get(from)
		if err != nil {
			return err
		}
		if from == to {
			return errUnchanged
		}
		if _, exists := reg[to]; exists {
			return fmt.Errorf("%w: %s", vhost.ErrDuplicateDomain, to)
		}
		delete(reg, from)
		host.Domain = to
		reg.Put(host)
		return nil
	})
	if err != nil {
		return err
	}
	log.Info(log.CatRegistry, "Renamed host", "from", from, "to", to)
	return nil
}

// RenameGroup relabels every host in group from as to and returns the number of
// hosts moved. An empty to moves them back to the default group.
func (s *Service) RenameGroup(ctx context.Context, from, to string) (moved int, err error) {
	ctx, span := s.start(ctx, "rename_group", attribute.String(tracing.AttrGroup, from))
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	to = strings.TrimSpace(to)
	if to == "" {
		to = vhost.DefaultGroup
	}

	err = s.update(ctx, func(reg vhost.Registry) error {
		for domain, host := range reg {
			if host.Group == from && from != to {
				host.Group = to
				reg[domain] = host
				moved++
			}
		}
		if moved == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrChanged, moved))
	log.Info(log.CatRegistry, "Renamed group", "from", from, "to", to, "moved", moved)
	return moved, nil
}

// AddAlias appends an active alias to domain and returns it.
func (s *Service) AddAlias(ctx context.Context, domain, value string) (alias vhost.Alias, err error) {
	ctx, span := s.start(ctx, "alias_add", attribute.String(tracing.AttrDomain, domain))
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	value = strings.TrimSpace(value)
	if err := vhost.ValidateDomain(value); err != nil {
		return vhost.Alias{}, err
	}

	err = s.repo.Update(ctx, func(reg vhost.Registry) error {
		host, err := reg.Get(domain)
		if err != nil {
			return err
		}
		for _, a := range host.Aliases {
			if a.Value == value {
				return fmt.Errorf("%w: alias %s on %s", vhost.ErrDuplicateDomain, value, domain)
			}
		}
		alias = vhost.NewAlias(value)
		host.Aliases = append(host.Aliases, alias)
		reg.Put(host)
		return nil
	})
	if err != nil {
		return vhost.Alias{}, err
	}
	span.SetAttributes(attribute.String(tracing.AttrAliasID, alias.ID))
	log.Info(log.CatRegistry, "Added alias", "domain", domain, "alias", value, "id", alias.ID)
	return alias, nil
}

// RemoveAlias deletes the alias with aliasID from domain.
func (s *Service) RemoveAlias(ctx context.Context, domain, aliasID string) (err error) {
	ctx, span := s.start(ctx, "alias_remove",
		attribute.String(tracing.AttrDomain, domain),
		attribute.String(tracing.AttrAliasID, aliasID),
	)
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	err = s.repo.Update(ctx, func(reg vhost.Registry) error {
		host, i, err := findAlias(reg, domain, aliasID)
		if err != nil {
			return err
		}
		host.Aliases = append(host.Aliases[:i:i], host.Aliases[i+1:]...)
		reg.Put(host)
		return nil
	})
	if err != nil {
		return err
	}
	log.Info(log.CatRegistry, "Removed alias", "domain", domain, "id", aliasID)
	return nil
}

// ToggleAlias flips the active flag of one alias and returns the updated alias.
func (s *Service) ToggleAlias(ctx context.Context, domain, aliasID string) (alias vhost.Alias, err error) {
	ctx, span := s.start(ctx, "alias_toggle",
		attribute.String(tracing.AttrDomain, domain),
		attribute.String(tracing.AttrAliasID, aliasID),
	)
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	err = s.repo.Update(ctx, func(reg vhost.Registry) error {
		host, i, err := findAlias(reg, domain, aliasID)
		if err != nil {
			return err
		}
		host.Aliases[i].Active = !host.Aliases[i].Active
		alias = host.Aliases[i]
		reg.Put(host)
		return nil
	})
	if err != nil {
		return vhost.Alias{}, err
	}
	log.Info(log.CatRegistry, "Toggled alias", "domain", domain, "id", aliasID, "active", alias.Active)
	return alias, nil
}

// update runs s.repo.Update and treats errUnchanged as success.
func (s *Service) update(ctx context.Context, fn func(vhost.Registry) error) error {
	err := s.repo.Update(ctx, fn)
	if errors.Is(err, errUnchanged) {
		log.Debug(log.CatRegistry, "Mutation changed nothing, skipped write", "path", s.repo.Path())
		return nil
	}
	return err
}

// findAlias returns a copy of the host (safe to modify) and the alias position.
func findAlias(reg vhost.Registry, domain, aliasID string) (vhost.Host, int, error) {
	host, err := reg.Get(domain)
	if err != nil {
		return vhost.Host{}, -1, err
	}
	host = host.Clone()
	i := host.AliasIndex(aliasID)
	if i < 0 {
		return vhost.Host{}, -1, &vhost.NotFoundError{Domain: domain, AliasID: aliasID}
	}
	return host, i, nil
}

// prepareHost fills defaults for fields a caller left empty and normalizes aliases.
func prepareHost(host vhost.Host) (vhost.Host, error) {
	if host.Group == "" {
		host.Group = vhost.DefaultGroup
	}
	if host.Type == "" {
		host.Type = vhost.DefaultType
	}
	normalized, err := vhost.Registry{host.Domain: host}.Normalize()
	if err != nil {
		return vhost.Host{}, err
	}
	return normalized[host.Domain], nil
}

// ErrorKind classifies err for span attributes, log fields and HTTP mapping.
func ErrorKind(err error) string {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, vhost.ErrNotFound):
		return "not_found"
	case errors.Is(err, vhost.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, vhost.ErrParse):
		return "parse"
	case errors.Is(err, vhost.ErrInvalidDomain):
		return "invalid_domain"
	case errors.Is(err, vhost.ErrDuplicateDomain):
		return "duplicate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &pathErr):
		return "io"
	default:
		return "internal"
	}
}
