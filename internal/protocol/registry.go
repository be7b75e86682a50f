package protocol

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures NewRegistry.
type Option func(*options)

type options struct {
	logger        Logger
	defaultLoader Loader
	strict        bool
}

// WithLogger sets the logger used while compiling the catalog.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDefaultLoader replaces the embedded catalog used when NewRegistry is
// called without a catalog.
func WithDefaultLoader(loader Loader) Option {
	return func(o *options) {
		if loader != nil {
			o.defaultLoader = loader
		}
	}
}

// WithStrict rejects catalogs containing unknown type tags or duplicate
// protocol names instead of logging a warning.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// Registry indexes compiled validators by protocol name and dispatches
// payloads to them.
//
// A Registry is read-only after construction. All methods are safe for
// concurrent use.
type Registry struct {
	validators  map[string]*Validator
	definitions map[string]ProtocolDefinition
	names       []string
}

// NewRegistry compiles every protocol in catalog.
//
// When catalog is nil the default loader is used (the embedded catalog
// unless WithDefaultLoader is given). Load failures wrap ErrLoad.
//
// Duplicate protocol names keep the last definition; unknown type tags
// accept any value. Both are logged, or rejected with ErrLoad under
// WithStrict(true).
func NewRegistry(ctx context.Context, catalog *Catalog, opts ...Option) (*Registry, error) {
	o := options{
		logger:        noopLogger{},
		defaultLoader: EmbeddedLoader(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if catalog == nil {
		o.logger.Info("using default protocol catalog")
		loaded, err := o.defaultLoader.Load(ctx)
		if err != nil {
			if errors.Is(err, ErrLoad) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
		if loaded == nil {
			return nil, fmt.Errorf("%w: default loader returned no catalog", ErrLoad)
		}
		catalog = loaded
	}

	r := &Registry{
		validators:  make(map[string]*Validator, len(catalog.Protocols)),
		definitions: make(map[string]ProtocolDefinition, len(catalog.Protocols)),
	}

	for _, def := range catalog.Protocols {
		if err := r.checkDefinition(def, o); err != nil {
			return nil, err
		}

		r.validators[def.Name] = Compile(def)
		r.definitions[def.Name] = copyDefinition(def)
		o.logger.Debug("added protocol", "protocol", def.Name, "options", len(def.Options))
	}

	r.names = make([]string, 0, len(r.validators))
	for name := range r.validators {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	o.logger.Info("protocol registry built", "protocols", len(r.names))
	return r, nil
}

// checkDefinition applies the duplicate-name and unknown-tag policy.
func (r *Registry) checkDefinition(def ProtocolDefinition, o options) error {
	if _, dup := r.validators[def.Name]; dup {
		if o.strict {
			return fmt.Errorf("%w: duplicate protocol %q", ErrLoad, def.Name)
		}
		o.logger.Warn("duplicate protocol replaces earlier definition", "protocol", def.Name)
	}

	for _, opt := range def.Options {
		tag, unknown := HasUnknown(opt.Type)
		if !unknown {
			continue
		}
		if o.strict {
			return fmt.Errorf("%w: protocol %q option %q has unknown type %q",
				ErrLoad, def.Name, opt.Name, tag)
		}
		o.logger.Warn("unknown option type accepts any value",
			"protocol", def.Name,
			"option", opt.Name,
			"type", tag,
		)
	}
	return nil
}

// Validate checks payload against the protocol it names.
//
// The protocol field may hold the name or a list whose first element is the
// name. With protocolAsList the returned payload carries the protocol as a
// single-element list; otherwise as the bare name. The caller's payload is
// never modified.
//
// Errors: ErrMissingProtocol, ErrUnknownProtocol, or a *SchemaError
// matching ErrSchemaViolation.
func (r *Registry) Validate(payload Payload, protocolAsList bool) (Payload, error) {
	name, err := Discriminator(payload)
	if err != nil {
		return nil, err
	}

	v, ok := r.validators[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProtocol, name)
	}

	normalized := make(Payload, len(payload))
	for k, val := range payload {
		normalized[k] = val
	}
	normalized[KeyProtocol] = name

	validated, err := v.Validate(normalized)
	if err != nil {
		return nil, err
	}

	if protocolAsList {
		validated[KeyProtocol] = []any{name}
	}
	return validated, nil
}

// Discriminator extracts the effective protocol name from a payload.
//
// A list value contributes its first element. A missing, null or empty
// value is ErrMissingProtocol; a non-string name is ErrUnknownProtocol.
func Discriminator(payload Payload) (string, error) {
	raw, ok := payload[KeyProtocol]
	if !ok || raw == nil {
		return "", ErrMissingProtocol
	}

	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return "", fmt.Errorf("%w: empty protocol list", ErrMissingProtocol)
		}
		raw = v[0]
	case []string:
		if len(v) == 0 {
			return "", fmt.Errorf("%w: empty protocol list", ErrMissingProtocol)
		}
		raw = v[0]
	}

	name, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w %s", ErrUnknownProtocol, describe(raw))
	}
	return name, nil
}

// Lookup returns the compiled validator for a protocol.
func (r *Registry) Lookup(name string) (*Validator, bool) {
	v, ok := r.validators[name]
	return v, ok
}

// Definition returns the catalog definition a validator was compiled from.
// The returned value is a copy.
func (r *Registry) Definition(name string) (ProtocolDefinition, bool) {
	def, ok := r.definitions[name]
	if !ok {
		return ProtocolDefinition{}, false
	}
	return copyDefinition(def), true
}

// Names returns all protocol names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of protocols in the registry.
func (r *Registry) Len() int {
	return len(r.names)
}

// Catalog rebuilds a catalog document from the registry, sorted by name.
func (r *Registry) Catalog() *Catalog {
	cat := &Catalog{Protocols: make([]ProtocolDefinition, 0, len(r.names))}
	for _, name := range r.names {
		cat.Protocols = append(cat.Protocols, copyDefinition(r.definitions[name]))
	}
	return cat
}

func copyDefinition(def ProtocolDefinition) ProtocolDefinition {
	return ProtocolDefinition{
		Name:    def.Name,
		Devices: append([]string(nil), def.Devices...),
		Options: append([]OptionDescriptor(nil), def.Options...),
	}
}
