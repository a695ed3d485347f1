//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// ErrUserNotFound indicates the referenced user does not exist.
type ErrUserNotFound struct {
	UserID string
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// ErrProfileNotFound indicates the user has no stored profile.
type ErrProfileNotFound struct {
	UserID string
}

func (e *ErrProfileNotFound) Error() string {
	return fmt.Sprintf("profile not found for user: %s", e.UserID)
}

// ErrEvaluationNotFound indicates a stored evaluation does not exist.
type ErrEvaluationNotFound struct {
	ID string
}

func (e *ErrEvaluationNotFound) Error() string {
	return fmt.Sprintf("evaluation not found: %s", e.ID)
}

// ErrEmailAlreadyExists indicates the email is already registered to another user.
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}
