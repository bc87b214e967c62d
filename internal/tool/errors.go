package tool

import "errors"

var (
	// ErrToolNotFound is returned when a tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrEmptyToolName is returned when a tool name is empty.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrDuplicateTool is returned when registering a tool with a name that
	// already exists in the registry.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidToolName is returned when a tool name cannot be written in
	// the action grammar (only letters, digits and underscores are allowed).
	ErrInvalidToolName = errors.New("tool name must match [A-Za-z0-9_]+")

	// ErrRegistryFrozen is returned by Register once the registry is frozen.
	ErrRegistryFrozen = errors.New("tool registry is frozen")
)
