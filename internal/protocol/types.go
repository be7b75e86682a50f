package protocol

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Catalog document keys.
const (
	// KeyProtocol is the payload field holding the discriminator.
	KeyProtocol = "protocol"
)

// Scalar type tags recognised in option definitions.
const (
	TagString = "string"
	TagNumber = "number"
)

// Catalog is the full set of protocol definitions known to a daemon.
type Catalog struct {
	Protocols []ProtocolDefinition `json:"protocols" yaml:"protocols" toml:"protocols"`
}

// ProtocolDefinition describes one pilight protocol.
type ProtocolDefinition struct {
	Name    string             `json:"name" yaml:"name" toml:"name"`
	Devices []string           `json:"devices" yaml:"devices" toml:"devices"`
	Options []OptionDescriptor `json:"options" yaml:"options" toml:"options"`
}

// OptionDescriptor is one named, typed field of a protocol.
type OptionDescriptor struct {
	Name string   `json:"name" yaml:"name" toml:"name"`
	Type TypeSpec `json:"vartype" yaml:"vartype" toml:"vartype"`
}

// TypeSpec is a declared option type. It is either a scalar tag or an
// ordered list of alternative TypeSpecs.
//
// In a catalog document it appears as "string" or ["string", "number"];
// lists may nest.
type TypeSpec struct {
	Tag          string
	Alternatives []TypeSpec
}

// Scalar returns a TypeSpec for a single tag.
func Scalar(tag string) TypeSpec {
	return TypeSpec{Tag: tag}
}

// OneOf returns a TypeSpec accepting any of the given alternatives.
func OneOf(alts ...TypeSpec) TypeSpec {
	return TypeSpec{Alternatives: append([]TypeSpec{}, alts...)}
}

// IsList reports whether the spec was declared as a list.
func (t TypeSpec) IsList() bool {
	return t.Alternatives != nil
}

func (t TypeSpec) String() string {
	if !t.IsList() {
		return t.Tag
	}
	b, _ := json.Marshal(t) //nolint:errcheck // TypeSpec always marshals
	return string(b)
}

// MarshalJSON renders the spec in catalog form.
func (t TypeSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.value())
}

// UnmarshalJSON accepts a tag string or a (nested) list of tags.
func (t *TypeSpec) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = typeSpecFromValue(raw)
	return nil
}

// MarshalYAML renders the spec in catalog form.
func (t TypeSpec) MarshalYAML() (any, error) {
	return t.value(), nil
}

// UnmarshalYAML accepts a tag scalar or a (nested) sequence of tags.
func (t *TypeSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*t = typeSpecFromValue(raw)
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (t *TypeSpec) UnmarshalTOML(raw any) error {
	*t = typeSpecFromValue(raw)
	return nil
}

// value converts the spec back into generic document form.
func (t TypeSpec) value() any {
	if !t.IsList() {
		return t.Tag
	}
	out := make([]any, len(t.Alternatives))
	for i, alt := range t.Alternatives {
		out[i] = alt.value()
	}
	return out
}

// typeSpecFromValue converts a decoded document value into a TypeSpec.
// A missing vartype (nil) becomes an empty tag, which resolves to Any. Any
// other non-list value becomes a tag of its printed form, so it is treated
// like an unknown tag rather than failing the load.
func typeSpecFromValue(raw any) TypeSpec {
	switch v := raw.(type) {
	case nil:
		return TypeSpec{}
	case string:
		return TypeSpec{Tag: v}
	case []any:
		alts := make([]TypeSpec, 0, len(v))
		for _, item := range v {
			alts = append(alts, typeSpecFromValue(item))
		}
		return TypeSpec{Alternatives: alts}
	case []string:
		alts := make([]TypeSpec, len(v))
		for i, tag := range v {
			alts[i] = TypeSpec{Tag: tag}
		}
		return TypeSpec{Alternatives: alts}
	default:
		return TypeSpec{Tag: fmt.Sprint(v)}
	}
}

// Payload is a command or event exchanged with the daemon.
type Payload map[string]any

// DeepCopy returns a copy that shares no maps or slices with p.
func (p Payload) DeepCopy() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue duplicates nested containers produced by JSON/YAML decoding.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = copyValue(item)
		}
		return m
	case Payload:
		return val.DeepCopy()
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = copyValue(item)
		}
		return s
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
