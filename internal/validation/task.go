// Package validation provides composable guards over domain.Task, the
// label grammar, and attached-spec section requirements. Validators chain
// the same way the engine's original issue guards did: Chain() runs each
// in order and stops at the first error.
package validation

import (
	"github.com/BumpyClock/tasque/internal/domain"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// TaskValidator validates a task and returns a kinded error on failure.
type TaskValidator func(id string, t *domain.Task) error

// Chain composes validators; the first error stops the chain.
func Chain(validators ...TaskValidator) TaskValidator {
	return func(id string, t *domain.Task) error {
		for _, v := range validators {
			if err := v(id, t); err != nil {
				return err
			}
		}
		return nil
	}
}

// Exists validates that a task was found.
func Exists() TaskValidator {
	return func(id string, t *domain.Task) error {
		if t == nil {
			return tasqerr.New(tasqerr.CodeTaskNotFound, "task %s not found", id)
		}
		return nil
	}
}

// NotTerminal validates that a task has not reached a terminal status.
func NotTerminal() TaskValidator {
	return func(id string, t *domain.Task) error {
		if t == nil {
			return nil
		}
		if t.Status.Terminal() {
			return tasqerr.New(tasqerr.CodeInvalidTransition, "task %s is in terminal status %s", id, t.Status)
		}
		return nil
	}
}

// HasStatus validates that a task has one of the allowed statuses.
func HasStatus(allowed ...domain.Status) TaskValidator {
	return func(id string, t *domain.Task) error {
		if t == nil {
			return nil
		}
		for _, st := range allowed {
			if t.Status == st {
				return nil
			}
		}
		return tasqerr.New(tasqerr.CodeInvalidStatus, "task %s has status %s, expected one of %v", id, t.Status, allowed)
	}
}

// ForClaim is the guard Claim runs before emitting task.claimed.
func ForClaim() TaskValidator {
	return Chain(Exists(), NotTerminal())
}

// ForReopen is the guard Reopen runs: task must exist and be terminal.
func ForReopen() TaskValidator {
	return Chain(Exists(), HasStatus(domain.StatusClosed, domain.StatusCanceled))
}
