package protocol

import (
	"encoding/json"
	"strings"
)

// RuleKind identifies the variant of a Rule.
type RuleKind int

// Rule variants.
const (
	// RuleAny accepts every value, including nil.
	RuleAny RuleKind = iota
	// RuleScalar accepts values of one scalar kind.
	RuleScalar
	// RuleAnyOf accepts a value when at least one alternative does.
	RuleAnyOf
)

// ScalarKind is the value class checked by a RuleScalar.
type ScalarKind int

// Scalar kinds.
const (
	KindString ScalarKind = iota + 1
	KindNumber
)

func (k ScalarKind) String() string {
	switch k {
	case KindString:
		return TagString
	case KindNumber:
		return TagNumber
	default:
		return "unknown"
	}
}

// scalarTags maps recognised type tags to their kind.
var scalarTags = map[string]ScalarKind{
	TagString: KindString,
	TagNumber: KindNumber,
}

// Rule is a compiled acceptance rule for one option.
//
// Rules are plain values; the zero Rule is RuleAny.
type Rule struct {
	Kind         RuleKind
	Scalar       ScalarKind
	Alternatives []Rule
}

// Resolve compiles a declared TypeSpec into a Rule.
//
// A single-element list resolves to its element. Longer lists become
// RuleAnyOf in declared order. Unknown tags, empty lists and missing types
// resolve to RuleAny. Resolve never fails.
func Resolve(spec TypeSpec) Rule {
	if spec.IsList() {
		switch len(spec.Alternatives) {
		case 0:
			return Rule{Kind: RuleAny}
		case 1:
			return Resolve(spec.Alternatives[0])
		}
		alts := make([]Rule, len(spec.Alternatives))
		for i, alt := range spec.Alternatives {
			alts[i] = Resolve(alt)
		}
		return Rule{Kind: RuleAnyOf, Alternatives: alts}
	}

	if kind, ok := scalarTags[spec.Tag]; ok {
		return Rule{Kind: RuleScalar, Scalar: kind}
	}
	return Rule{Kind: RuleAny}
}

// Accepts reports whether v satisfies the rule.
func (r Rule) Accepts(v any) bool {
	switch r.Kind {
	case RuleScalar:
		return acceptsScalar(r.Scalar, v)
	case RuleAnyOf:
		for _, alt := range r.Alternatives {
			if alt.Accepts(v) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// String renders the rule for error messages, e.g. "string|number".
func (r Rule) String() string {
	switch r.Kind {
	case RuleScalar:
		return r.Scalar.String()
	case RuleAnyOf:
		parts := make([]string, len(r.Alternatives))
		for i, alt := range r.Alternatives {
			parts[i] = alt.String()
		}
		return strings.Join(parts, "|")
	default:
		return "any"
	}
}

// HasUnknown reports whether the spec contains a tag Resolve does not
// recognise, or an empty list. Used by strict catalog loading.
func HasUnknown(spec TypeSpec) (string, bool) {
	if spec.IsList() {
		if len(spec.Alternatives) == 0 {
			return "[]", true
		}
		for _, alt := range spec.Alternatives {
			if tag, ok := HasUnknown(alt); ok {
				return tag, true
			}
		}
		return "", false
	}
	if _, ok := scalarTags[spec.Tag]; ok {
		return "", false
	}
	return spec.Tag, true
}

func acceptsScalar(kind ScalarKind, v any) bool {
	switch kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		return isNumber(v)
	default:
		return false
	}
}

// isNumber accepts Go integer and floating-point values. Booleans are not
// numbers here.
func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	default:
		return false
	}
}
