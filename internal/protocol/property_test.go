package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// genValue draws a value accepted by rule.
func genValue(t *rapid.T, rule Rule, label string) any {
	switch rule.Kind {
	case RuleScalar:
		if rule.Scalar == KindString {
			return rapid.String().Draw(t, label)
		}
		return rapid.Float64Range(-1e6, 1e6).Draw(t, label)
	case RuleAnyOf:
		alt := rapid.SampledFrom(rule.Alternatives).Draw(t, label+"-alt")
		return genValue(t, alt, label)
	default:
		return rapid.OneOf(
			rapid.Just[any](nil),
			rapid.Map(rapid.Bool(), func(b bool) any { return b }),
			rapid.Map(rapid.String(), func(s string) any { return s }),
		).Draw(t, label)
	}
}

// genPayload draws a valid payload for a random protocol of the embedded
// catalog, using a random subset of its options.
func genPayload(t *rapid.T, r *Registry) (string, Payload) {
	name := rapid.SampledFrom(r.Names()).Draw(t, "protocol")
	v, _ := r.Lookup(name)

	payload := Payload{KeyProtocol: name}
	for _, opt := range v.Options() {
		if !rapid.Bool().Draw(t, "include-"+opt) {
			continue
		}
		rule, _ := v.Rule(opt)
		payload[opt] = genValue(t, rule, opt)
	}
	return name, payload
}

func TestProperty_ValidPayloadsAccepted(t *testing.T) {
	r, err := NewRegistry(context.Background(), nil)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		name, payload := genPayload(t, r)
		asList := rapid.Bool().Draw(t, "asList")

		got, err := r.Validate(payload, asList)
		require.NoError(t, err)
		require.Len(t, got, len(payload))

		if asList {
			require.Equal(t, []any{name}, got[KeyProtocol])
		} else {
			require.Equal(t, name, got[KeyProtocol])
		}
		for k, v := range payload {
			if k == KeyProtocol {
				continue
			}
			require.Equal(t, v, got[k], "field %s", k)
		}
		require.Equal(t, name, payload[KeyProtocol], "input payload modified")
	})
}

func TestProperty_RevalidationIsStable(t *testing.T) {
	r, err := NewRegistry(context.Background(), nil)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		_, payload := genPayload(t, r)
		asList := rapid.Bool().Draw(t, "asList")

		first, err := r.Validate(payload, asList)
		require.NoError(t, err)

		second, err := r.Validate(first, asList)
		require.NoError(t, err)
		require.Equal(t, first, second)

		flipped, err := r.Validate(first, !asList)
		require.NoError(t, err)
		back, err := r.Validate(flipped, asList)
		require.NoError(t, err)
		require.Equal(t, first, back)
	})
}

func TestProperty_UndeclaredFieldRejected(t *testing.T) {
	r, err := NewRegistry(context.Background(), nil)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		name, payload := genPayload(t, r)
		v, _ := r.Lookup(name)

		extra := rapid.StringMatching(`x_[a-z]{1,8}`).Draw(t, "extra")
		if _, declared := v.Rule(extra); declared {
			t.Skip("drawn field is declared")
		}
		payload[extra] = rapid.Float64Range(-1e6, 1e6).Draw(t, "extra-value")

		_, err := r.Validate(payload, true)
		require.True(t, errors.Is(err, ErrSchemaViolation), "error = %v", err)

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		require.Equal(t, name, schemaErr.Protocol)

		var fields []string
		for _, viol := range schemaErr.Violations {
			fields = append(fields, viol.Field)
		}
		require.Contains(t, fields, extra)
	})
}

func TestProperty_WrongScalarTypeRejected(t *testing.T) {
	r, err := NewRegistry(context.Background(), nil)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		name, payload := genPayload(t, r)
		v, _ := r.Lookup(name)

		var scalars []string
		for _, opt := range v.Options() {
			if rule, _ := v.Rule(opt); rule.Kind == RuleScalar {
				scalars = append(scalars, opt)
			}
		}
		if len(scalars) == 0 {
			t.Skip("protocol has no scalar options")
		}

		field := rapid.SampledFrom(scalars).Draw(t, "field")
		rule, _ := v.Rule(field)
		if rule.Scalar == KindString {
			payload[field] = rapid.Float64Range(-1e6, 1e6).Draw(t, "bad-number")
		} else {
			payload[field] = rapid.String().Draw(t, "bad-string")
		}

		_, err := r.Validate(payload, false)
		require.True(t, errors.Is(err, ErrSchemaViolation), "error = %v", err)
	})
}
