package vhost

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Wire field names.
const (
	fieldDocroot = "docroot"
	fieldAliases = "aliases"
	fieldAlias   = "alias" // legacy singular alias
	fieldGroup   = "group"
	fieldActive  = "active"
	fieldSSL     = "ssl"
	fieldType    = "type"

	fieldAliasID     = "id"
	fieldAliasValue  = "value"
	fieldAliasActive = "active"
)

// wireHost is the canonical on-disk shape of a host. The domain lives in the
// enclosing object's key, not in the record.
type wireHost struct {
	Docroot string      `json:"docroot"`
	Aliases []wireAlias `json:"aliases"`
	Group   string      `json:"group"`
	Active  bool        `json:"active"`
	SSL     bool        `json:"ssl"`
	Type    string      `json:"type"`
}

type wireAlias struct {
	ID     string `json:"id"`
	Value  string `json:"value"`
	Active bool   `json:"active"`
}

// aliasShape classifies the "aliases" member before conversion.
type aliasShape int

const (
	shapeNone    aliasShape = iota // absent, null, or not an array
	shapeObjects                   // canonical: [{id, value, active}, ...]
	shapeStrings                   // legacy: ["a.test", ...]
	shapeMixed                     // elements of several kinds, converted one by one
)

func (s aliasShape) String() string {
	switch s {
	case shapeObjects:
		return "objects"
	case shapeStrings:
		return "strings"
	case shapeMixed:
		return "mixed"
	default:
		return "none"
	}
}

var errNotObject = errors.New("top-level value is not a JSON object")

// DecodeRegistry parses a hosts document. It returns the decoded registry and
// the sorted list of domains whose entries were skipped because they were not
// JSON objects. A document that is not a JSON object yields a *ParseError.
func DecodeRegistry(data []byte) (Registry, []string, error) {
	if !isJSONObject(data) {
		if !json.Valid(data) {
			var anyJSON any
			err := json.Unmarshal(data, &anyJSON)
			return nil, nil, &ParseError{Err: err}
		}
		return nil, nil, &ParseError{Err: errNotObject}
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, nil, &ParseError{Err: err}
	}

	reg := make(Registry, len(members))
	skipped := make([]string, 0)
	for domain, raw := range members {
		host, ok := DecodeHost(domain, raw)
		if !ok {
			skipped = append(skipped, domain)
			continue
		}
		reg[domain] = host
	}
	sort.Strings(skipped)
	return reg, skipped, nil
}

// DecodeHost converts one entry of the hosts document. The second result is
// false when raw is not a JSON object, in which case the entry must be skipped.
func DecodeHost(domain string, raw json.RawMessage) (Host, bool) {
	fields, ok := objectFields(raw)
	if !ok {
		return Host{}, false
	}

	host := Host{
		Domain:  domain,
		Docroot: stringField(fields, fieldDocroot, ""),
		Group:   stringField(fields, fieldGroup, DefaultGroup),
		Active:  boolField(fields, fieldActive, true),
		SSL:     boolField(fields, fieldSSL, true),
		Type:    stringField(fields, fieldType, DefaultType),
	}
	host.Aliases = decodeAliases(fields)
	return host, true
}

// decodeAliases applies the alias precedence rule: the "aliases" member is
// used first, and the legacy singular "alias" member only when that produced
// nothing.
func decodeAliases(fields map[string]json.RawMessage) []Alias {
	shape, items := classifyAliases(fields[fieldAliases])

	var aliases []Alias
	switch shape {
	case shapeObjects:
		aliases = objectAliases(items)
	case shapeStrings:
		aliases = stringAliases(items)
	case shapeMixed:
		aliases = mixedAliases(items)
	default:
		aliases = []Alias{}
	}

	if len(aliases) == 0 {
		if legacy := stringField(fields, fieldAlias, ""); legacy != "" {
			aliases = append(aliases, NewAlias(legacy))
		}
	}
	return aliases
}

// classifyAliases inspects the element kinds of the "aliases" member.
// An empty array is classified as the canonical shape.
func classifyAliases(raw json.RawMessage) (aliasShape, []json.RawMessage) {
	if raw == nil {
		return shapeNone, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return shapeNone, nil
	}

	objects, strs := 0, 0
	for _, item := range items {
		switch firstByte(item) {
		case '{':
			objects++
		case '"':
			strs++
		}
	}
	switch {
	case objects == len(items):
		return shapeObjects, items
	case strs == len(items):
		return shapeStrings, items
	default:
		return shapeMixed, items
	}
}

func objectAliases(items []json.RawMessage) []Alias {
	aliases := make([]Alias, 0, len(items))
	for _, item := range items {
		if alias, ok := objectAlias(item); ok {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

func stringAliases(items []json.RawMessage) []Alias {
	aliases := make([]Alias, 0, len(items))
	for _, item := range items {
		if alias, ok := stringAlias(item); ok {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

func mixedAliases(items []json.RawMessage) []Alias {
	aliases := make([]Alias, 0, len(items))
	for _, item := range items {
		var (
			alias Alias
			ok    bool
		)
		switch firstByte(item) {
		case '{':
			alias, ok = objectAlias(item)
		case '"':
			alias, ok = stringAlias(item)
		}
		if ok {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

func objectAlias(item json.RawMessage) (Alias, bool) {
	fields, ok := objectFields(item)
	if !ok {
		return Alias{}, false
	}
	value := stringField(fields, fieldAliasValue, "")
	if value == "" {
		return Alias{}, false
	}
	id := stringField(fields, fieldAliasID, "")
	if id == "" {
		id = NewAliasID()
	}
	return Alias{
		ID:     id,
		Value:  value,
		Active: boolField(fields, fieldAliasActive, true),
	}, true
}

func stringAlias(item json.RawMessage) (Alias, bool) {
	var value string
	if err := json.Unmarshal(item, &value); err != nil || value == "" {
		return Alias{}, false
	}
	return NewAlias(value), true
}

// EncodeRegistry serializes the registry in canonical form: two-space
// indentation, keys sorted, aliases always an array of objects.
func EncodeRegistry(reg Registry) ([]byte, error) {
	wire := make(map[string]wireHost, len(reg))
	for domain, host := range reg {
		wire[domain] = encodeHost(host)
	}
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding hosts: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeHost serializes a single host record in canonical form.
func EncodeHost(host Host) ([]byte, error) {
	data, err := json.MarshalIndent(encodeHost(host), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding host %s: %w", host.Domain, err)
	}
	return data, nil
}

func encodeHost(host Host) wireHost {
	aliases := make([]wireAlias, 0, len(host.Aliases))
	for _, a := range host.Aliases {
		aliases = append(aliases, wireAlias(a))
	}
	return wireHost{
		Docroot: host.Docroot,
		Aliases: aliases,
		Group:   host.Group,
		Active:  host.Active,
		SSL:     host.SSL,
		Type:    host.Type,
	}
}

// objectFields unmarshals raw into its members. It fails for anything that is
// not a JSON object, including null.
func objectFields(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if firstByte(raw) != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// stringField returns the named member if it is a JSON string, otherwise def.
func stringField(fields map[string]json.RawMessage, key, def string) string {
	raw, ok := fields[key]
	if !ok || firstByte(raw) != '"' {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return def
	}
	return s
}

// boolField returns the named member if it is a JSON boolean, otherwise def.
func boolField(fields map[string]json.RawMessage, key string, def bool) bool {
	raw, ok := fields[key]
	if !ok {
		return def
	}
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true
	case "false":
		return false
	default:
		return def
	}
}

func isJSONObject(data []byte) bool {
	return firstByte(data) == '{' && json.Valid(data)
}

// firstByte returns the first non-whitespace byte of raw, or 0.
func firstByte(raw []byte) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
