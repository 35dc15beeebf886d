package hosts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
	"github.com/zjrosen/vhosts/internal/tracing"
)

// Format is a serialization used by Export and Import.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want json or yaml)", s)
	}
}

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ImportResult summarizes an Import.
type ImportResult struct {
	Imported int
	// Skipped lists entries dropped because they were not objects.
	Skipped []string
	Merged  bool
}

// Export writes the registry to w. JSON output is byte-identical to hosts.json.
func (s *Service) Export(ctx context.Context, w io.Writer, format Format) (err error) {
	ctx, span := s.start(ctx, "export", attribute.String(tracing.AttrFormat, string(format)))
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	reg, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	data, err := EncodeFormat(reg, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	span.SetAttributes(attribute.Int(tracing.AttrHostCount, len(reg)))
	log.Info(log.CatRegistry, "Exported registry", "format", format, "hosts", len(reg))
	return nil
}

// Import reads a registry from r. Legacy alias shapes are accepted. With merge the
// imported hosts are upserted into the current registry; without it they replace
// the registry entirely.
func (s *Service) Import(ctx context.Context, r io.Reader, format Format, merge bool) (result ImportResult, err error) {
	ctx, span := s.start(ctx, "import",
		attribute.String(tracing.AttrFormat, string(format)),
		attribute.Bool(tracing.AttrMerge, merge),
	)
	defer func() { tracing.Finish(span, err, ErrorKind) }()

	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("reading import: %w", err)
	}
	incoming, skipped, err := DecodeFormat(data, format)
	if err != nil {
		return ImportResult{}, err
	}
	incoming, err = incoming.Normalize()
	if err != nil {
		return ImportResult{}, err
	}

	if merge {
		err = s.repo.Update(ctx, func(reg vhost.Registry) error {
			for _, host := range incoming {
				reg.Put(host)
			}
			return nil
		})
	} else {
		err = s.repo.Replace(ctx, incoming)
	}
	if err != nil {
		return ImportResult{}, err
	}

	result = ImportResult{Imported: len(incoming), Skipped: skipped, Merged: merge}
	span.SetAttributes(attribute.Int(tracing.AttrHostCount, result.Imported))
	log.Info(log.CatRegistry, "Imported registry",
		"format", format, "hosts", result.Imported, "skipped", len(skipped), "merge", merge)
	return result, nil
}

// EncodeFormat serializes reg in the requested format.
func EncodeFormat(reg vhost.Registry, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return vhost.EncodeRegistry(reg)
	case FormatYAML:
		// Round-trip through the canonical JSON so YAML carries exactly the stored fields.
		canonical, err := vhost.EncodeRegistry(reg)
		if err != nil {
			return nil, err
		}
		var tree yaml.Node
		if err := yaml.Unmarshal(canonical, &tree); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		clearStyle(&tree)
		out, err := yaml.Marshal(&tree)
		if err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// DecodeFormat parses data as a registry, tolerating legacy entry shapes.
func DecodeFormat(data []byte, format Format) (vhost.Registry, []string, error) {
	switch format {
	case FormatJSON, "":
		return vhost.DecodeRegistry(data)
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, nil, &vhost.ParseError{Err: err}
		}
		if doc == nil {
			return vhost.NewRegistry(), nil, nil
		}
		asJSON, err := json.Marshal(doc)
		if err != nil {
			return nil, nil, &vhost.ParseError{Err: err}
		}
		return vhost.DecodeRegistry(asJSON)
	default:
		return nil, nil, fmt.Errorf("unsupported format %q", format)
	}
}

// clearStyle drops the flow style JSON input gives every node so YAML comes out in block form.
func clearStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		clearStyle(child)
	}
}
