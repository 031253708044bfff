package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrValidation marks a request that fails orchestrator validation.
	ErrValidation = errors.New("validation failed")
	// ErrNoArtifacts marks a collection pass that found nothing to merge.
	ErrNoArtifacts = errors.New("no artifacts produced")
)
