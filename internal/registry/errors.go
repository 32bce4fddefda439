// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

// Package registry implements the capability plugin registry: lazy
// loading, version gating, dependency-ordered activation, configuration
// validation and health monitoring.
package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the registry's failure kinds. Richer typed errors
// below unwrap to these so callers can branch with errors.Is.
var (
	ErrNotFound           = errors.New("plugin not found")
	ErrIncompatible       = errors.New("plugin incompatible with platform version")
	ErrDuplicate          = errors.New("plugin already registered")
	ErrConfigInvalid      = errors.New("plugin configuration invalid")
	ErrMissingDependency  = errors.New("plugin dependency not loaded")
	ErrCircularDependency = errors.New("plugin dependency cycle")
	ErrTimeout            = errors.New("plugin operation timed out")
)

// IncompatibleError reports a failed platform version check.
type IncompatibleError struct {
	Plugin   string
	Required string
	Platform string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("plugin %s requires platform %s, running platform is %s", e.Plugin, e.Required, e.Platform)
}

func (e *IncompatibleError) Unwrap() error { return ErrIncompatible }

// DependencyRef names one unsatisfiable dependency edge.
type DependencyRef struct {
	Plugin     string
	Dependency string
	// Reason distinguishes an unknown name from one that is loaded but
	// not scheduled for activation.
	Reason string
}

// MissingDependencyError reports every unsatisfiable dependency found
// before ordering was attempted.
type MissingDependencyError struct {
	Refs []DependencyRef
}

func (e *MissingDependencyError) Error() string {
	parts := make([]string, 0, len(e.Refs))
	for _, ref := range e.Refs {
		parts = append(parts, fmt.Sprintf("%s -> %s (%s)", ref.Plugin, ref.Dependency, ref.Reason))
	}
	return "missing dependencies: " + strings.Join(parts, ", ")
}

func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// CycleError reports a dependency cycle. Path holds the participating
// plugin names in walk order, with the first name repeated at the end,
// e.g. [a b c a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "circular dependency: " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCircularDependency }

// FieldError is one configuration validation failure.
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) Error() string {
	return e.Path + ": " + e.Message
}

// ValidationErrors carries every offending configuration field from a
// single validation pass.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return fmt.Sprintf("%d invalid configuration field(s): %s", len(e), strings.Join(parts, "; "))
}

func (e ValidationErrors) Unwrap() error { return ErrConfigInvalid }
