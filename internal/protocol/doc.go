// Package protocol provides the pilight Protocol Registry.
//
// The registry validates command and event payloads exchanged with a pilight
// daemon. Every payload carries a "protocol" discriminator naming one entry in
// a protocol catalog; the registry selects that protocol's compiled validator
// and checks the remaining fields against its typed option set.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                         Protocol Registry                            │
//	│                                                                      │
//	│  ┌────────────────┐    ┌─────────────────┐    ┌──────────────────┐   │
//	│  │    Loader      │    │    Registry     │    │    Validator     │   │
//	│  │  (loader.go)   │───▶│  (registry.go)  │───▶│  (validator.go)  │   │
//	│  │                │    │                 │    │                  │   │
//	│  │ • embedded     │    │ • name index    │    │ • discriminator  │   │
//	│  │ • JSON/YAML/   │    │ • dispatch      │    │ • closed schema  │   │
//	│  │   TOML files   │    │ • tag normalize │    │ • typed options  │   │
//	│  └────────────────┘    └─────────────────┘    └──────────────────┘   │
//	│                                                       │              │
//	│                                               ┌───────▼──────────┐   │
//	│                                               │      Rules       │   │
//	│                                               │    (rule.go)     │   │
//	│                                               │ Any|Scalar|AnyOf │   │
//	│                                               └──────────────────┘   │
//	└──────────────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	reg, err := protocol.NewRegistry(ctx, nil, protocol.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//
//	out, err := reg.Validate(protocol.Payload{"protocol": "daycom", "state": "on"}, true)
//	switch {
//	case errors.Is(err, protocol.ErrMissingProtocol):
//	case errors.Is(err, protocol.ErrUnknownProtocol):
//	case errors.Is(err, protocol.ErrSchemaViolation):
//	}
//	// out["protocol"] == []any{"daycom"}
//
// # Thread Safety
//
// A Registry never changes after NewRegistry returns, so Validate may be
// called from any goroutine without locking. To replace the catalog at
// runtime build a new Registry and publish it through a Holder.
package protocol
