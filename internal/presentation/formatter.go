package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Output formats for `vhosts list`.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	activeStyle   = cellStyle.Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	inactiveStyle = cellStyle.Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#696969"})
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"})
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatHosts writes hosts in the given format ("table", "json" or "yaml").
func (f *Formatter) FormatHosts(hosts []HostDTO, format string) error {
	switch format {
	case FormatTable, "":
		return f.FormatTable(hosts)
	case FormatJSON:
		return f.FormatJSON(hosts)
	case FormatYAML:
		enc := yaml.NewEncoder(f.writer)
		enc.SetIndent(2)
		if err := enc.Encode(hosts); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// FormatJSON writes v as indented JSON.
func (f *Formatter) FormatJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatTable renders hosts as a bordered table. Inactive rows are dimmed.
func (f *Formatter) FormatTable(hosts []HostDTO) error {
	if len(hosts) == 0 {
		_, err := fmt.Fprintln(f.writer, "No hosts configured.")
		return err
	}

	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		rows[i] = []string{
			h.Domain,
			h.Group,
			h.Type,
			onOff(h.Active),
			onOff(h.SSL),
			aliasCell(h.Aliases),
			h.Docroot,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("DOMAIN", "GROUP", "TYPE", "ACTIVE", "SSL", "ALIASES", "DOCROOT").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(hosts) && !hosts[row].Active:
				return inactiveStyle
			case row >= 0 && row < len(hosts):
				return activeStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintln(f.writer, t.String())
	return err
}

// FormatChange writes one monitor change as a single line.
func (f *Formatter) FormatChange(c ChangeDTO) error {
	line := fmt.Sprintf("[%s] %s (%d/%d active)", c.Kind, c.Summary, c.Active, c.Total)
	if c.Error != "" {
		line = fmt.Sprintf("[%s] %s", c.Kind, c.Summary)
	}
	_, err := fmt.Fprintln(f.writer, line)
	return err
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// aliasCell lists aliases, marking disabled ones with a trailing "(off)".
func aliasCell(aliases []AliasDTO) string {
	parts := make([]string, len(aliases))
	for i, a := range aliases {
		parts[i] = a.Value
		if !a.Active {
			parts[i] += " (off)"
		}
	}
	return strings.Join(parts, ", ")
}
