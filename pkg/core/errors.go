package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCollaborator matches any CollaboratorError via errors.Is.
	ErrCollaborator = errors.New("collaborator failure")

	ErrUnknownHubHeight = errors.New("unknown hub height")
	ErrInvalidPolygon   = errors.New("invalid polygon")
	ErrInvalidSpacing   = errors.New("spacing must be positive")
	ErrNotFound         = errors.New("not found")
)

// CollaboratorError reports a failed call to an external service
// (terrain, energy, optimizer). Op names the attempted operation.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCollaborator) match.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}

// Collaborator wraps err as a CollaboratorError unless it already is one.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Op: op, Err: err}
}
