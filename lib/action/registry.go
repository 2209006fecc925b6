// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package action maps request action names to the handlers that enact
// them.
//
// A [Handler] exposes the two-phase contract every action implements:
// Check performs read-only verification against external systems, and
// Run enacts the change, returning the residual request that describes
// whatever did not complete. A [Registry] is populated once at startup
// (see internal/actions.Register) and is read-only afterwards; it is
// passed explicitly to the batch runner rather than living in a global.
package action

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/conda-forge/admin-requests/lib/request"
)

// Handler enacts one action. Implementations are stateless between
// calls: every invocation receives its own request value and must not
// modify it.
type Handler interface {
	// Check verifies the request without changing external state:
	// schema checks and existence checks against the systems Run will
	// talk to. A non-nil error marks the request invalid and Run is
	// never called for it.
	Check(ctx context.Context, req request.Request) error

	// Run enacts the request. It returns nil (or an empty request) when
	// everything completed, or a residual request for the same action
	// carrying only the targets that did not complete, in their
	// original order. Run must be safe to call again with its own
	// residual: targets already in the desired state count as done.
	// An error means Run could not even account for which targets
	// completed; the request file is left untouched.
	Run(ctx context.Context, req request.Request) (request.Request, error)
}

// HandlerFuncs adapts a pair of functions to the Handler interface.
// Nil functions behave as no-ops that succeed.
type HandlerFuncs struct {
	CheckFunc func(ctx context.Context, req request.Request) error
	RunFunc   func(ctx context.Context, req request.Request) (request.Request, error)
}

// Check calls CheckFunc.
func (funcs HandlerFuncs) Check(ctx context.Context, req request.Request) error {
	if funcs.CheckFunc == nil {
		return nil
	}
	return funcs.CheckFunc(ctx, req)
}

// Run calls RunFunc.
func (funcs HandlerFuncs) Run(ctx context.Context, req request.Request) (request.Request, error) {
	if funcs.RunFunc == nil {
		return nil, nil
	}
	return funcs.RunFunc(ctx, req)
}

// Registry maps action names to handlers. The zero value is not usable;
// create one with NewRegistry.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under name. Registering the same name twice
// is a programming error reported as *DuplicateActionError.
func (registry *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return errors.New("action: cannot register a handler with an empty name")
	}
	if handler == nil {
		return fmt.Errorf("action: cannot register nil handler for %q", name)
	}
	if _, exists := registry.handlers[name]; exists {
		return &DuplicateActionError{Name: name}
	}
	registry.handlers[name] = handler
	return nil
}

// Resolve returns the handler registered under name, or
// *UnknownActionError.
func (registry *Registry) Resolve(name string) (Handler, error) {
	handler, ok := registry.handlers[name]
	if !ok {
		return nil, &UnknownActionError{Name: name}
	}
	return handler, nil
}

// Names returns the registered action names in sorted order.
func (registry *Registry) Names() []string {
	names := make([]string, 0, len(registry.handlers))
	for name := range registry.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered actions.
func (registry *Registry) Len() int {
	return len(registry.handlers)
}

// DuplicateActionError is returned by Register when the name is taken.
type DuplicateActionError struct {
	Name string
}

func (err *DuplicateActionError) Error() string {
	return fmt.Sprintf("action %q is already registered", err.Name)
}

// UnknownActionError is returned by Resolve when no handler is
// registered under the requested name.
type UnknownActionError struct {
	Name string
}

func (err *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", err.Name)
}
