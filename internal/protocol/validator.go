package protocol

import (
	"sort"
)

// Validator is the compiled schema of one protocol.
//
// It requires the protocol field to equal the protocol name, allows each
// declared option, and rejects everything else. A Validator is immutable
// and safe for concurrent use.
type Validator struct {
	name    string
	devices []string
	rules   map[string]Rule
	order   []string // declared option order
}

// Compile builds a Validator from a protocol definition.
//
// Options sharing a name keep the last declaration. An option named
// "protocol" is ignored because the discriminator rule always wins.
func Compile(def ProtocolDefinition) *Validator {
	v := &Validator{
		name:    def.Name,
		devices: append([]string(nil), def.Devices...),
		rules:   make(map[string]Rule, len(def.Options)),
	}

	for _, opt := range def.Options {
		if opt.Name == KeyProtocol {
			continue
		}
		if _, seen := v.rules[opt.Name]; !seen {
			v.order = append(v.order, opt.Name)
		}
		v.rules[opt.Name] = Resolve(opt.Type)
	}

	return v
}

// Name returns the protocol name this validator accepts.
func (v *Validator) Name() string {
	return v.name
}

// Devices returns the devices listed for the protocol.
func (v *Validator) Devices() []string {
	return append([]string(nil), v.devices...)
}

// Options returns the declared option names in catalog order.
func (v *Validator) Options() []string {
	return append([]string(nil), v.order...)
}

// Rule returns the compiled rule for an option.
func (v *Validator) Rule(option string) (Rule, bool) {
	r, ok := v.rules[option]
	return r, ok
}

// matches reports whether a discriminator value names this protocol.
func (v *Validator) matches(tag any) bool {
	s, ok := tag.(string)
	return ok && s == v.name
}

// Validate checks payload against the schema and returns a deep copy of it.
//
// The protocol field must equal the protocol name exactly; callers that wrap
// the discriminator in a list normalise it first (see Registry.Validate).
// All violations are reported in a single *SchemaError.
func (v *Validator) Validate(payload Payload) (Payload, error) {
	var violations []Violation

	tag, ok := payload[KeyProtocol]
	switch {
	case !ok:
		violations = append(violations, Violation{
			Field:  KeyProtocol,
			Reason: ReasonRequired,
		})
	case !v.matches(tag):
		violations = append(violations, Violation{
			Field:    KeyProtocol,
			Reason:   ReasonMismatch,
			Expected: v.name,
			Actual:   tag,
		})
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k != KeyProtocol {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		rule, declared := v.rules[k]
		if !declared {
			violations = append(violations, Violation{
				Field:  k,
				Reason: ReasonUndeclared,
				Actual: payload[k],
			})
			continue
		}
		if !rule.Accepts(payload[k]) {
			violations = append(violations, Violation{
				Field:    k,
				Reason:   ReasonWrongType,
				Expected: rule.String(),
				Actual:   payload[k],
			})
		}
	}

	if len(violations) > 0 {
		return nil, &SchemaError{Protocol: v.name, Violations: violations}
	}

	return payload.DeepCopy(), nil
}
