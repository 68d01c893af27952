package services

import "fmt"

// NotFoundError indicates the requested entity does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ForbiddenError indicates an authorization decision denied the operation.
// Reason carries the machine-readable denial code returned to clients.
type ForbiddenError struct {
	Reason  string
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// ValidationError indicates the request payload failed validation
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError indicates the request conflicts with existing state
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
