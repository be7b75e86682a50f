package protocol

import (
	"errors"
	"sync/atomic"
)

// ErrNoRegistry is returned by a Holder that has not been given a Registry.
var ErrNoRegistry = errors.New("protocol: no registry loaded")

// Holder publishes the current Registry to concurrent readers.
//
// Catalog reloads build a fresh Registry and Swap it in; validations that
// already hold the previous Registry finish against it.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder returns a Holder serving r.
func NewHolder(r *Registry) *Holder {
	h := &Holder{}
	if r != nil {
		h.current.Store(r)
	}
	return h
}

// Registry returns the current registry, or nil.
func (h *Holder) Registry() *Registry {
	return h.current.Load()
}

// Swap installs r and returns the registry it replaced.
func (h *Holder) Swap(r *Registry) *Registry {
	return h.current.Swap(r)
}

// Validate runs the current registry's Validate.
func (h *Holder) Validate(payload Payload, protocolAsList bool) (Payload, error) {
	r := h.current.Load()
	if r == nil {
		return nil, ErrNoRegistry
	}
	return r.Validate(payload, protocolAsList)
}
