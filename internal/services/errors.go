package services

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/bloomfield/api/internal/domain"
	"github.com/bloomfield/api/internal/repositories"
)

var (
	// ErrInvalidInput signals the caller provided malformed or missing data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates the actor exists but may not touch the entity.
	// The HTTP boundary collapses this to not found for customers; the audit
	// trail keeps the distinction.
	ErrAccessDenied = errors.New("access denied")
	// ErrConflict indicates a duplicate write or concurrent modification.
	ErrConflict = errors.New("conflict")
	// ErrEmptyCart rejects checkout on a basket with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock rejects quantities the catalog cannot cover.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity rejects zero or negative line quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrAlreadyExists rejects creating a second delivery for an order.
	ErrAlreadyExists = errors.New("already exists")
	// ErrOrderCancelled rejects attaching a delivery to a cancelled order.
	ErrOrderCancelled = errors.New("order is cancelled")
	// ErrDeliveryFrozen rejects status writes on a terminal delivery.
	ErrDeliveryFrozen = errors.New("delivery is frozen")
	// ErrAlreadyCancelled rejects cancelling a cancelled delivery.
	ErrAlreadyCancelled = errors.New("delivery is already cancelled")
	// ErrCompletedDelivery rejects cancelling a delivered delivery.
	ErrCompletedDelivery = errors.New("delivery is already completed")
	// ErrInvalidTransition is the sentinel wrapped by InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// InvalidTransitionError reports a rejected lifecycle move together with the
// moves the current status does permit.
type InvalidTransitionError struct {
	Entity  string
	Current string
	Target  string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("%s: cannot transition from %q to %q (allowed: %s)", e.Entity, e.Current, e.Target, allowed)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func newOrderTransitionError(current domain.OrderStatus, target domain.OrderStatus, allowed []domain.OrderStatus) error {
	names := make([]string, 0, len(allowed))
	for _, status := range allowed {
		names = append(names, string(status))
	}
	return &InvalidTransitionError{Entity: "order", Current: string(current), Target: string(target), Allowed: names}
}

// mapRepositoryError folds categorised repository failures into the service
// sentinels. Errors already carrying a service sentinel pass through
// unchanged so callbacks running inside repository transactions keep their
// meaning.
func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrInvalidInput, ErrNotFound, ErrAccessDenied, ErrEmptyCart,
		ErrInsufficientStock, ErrInvalidQuantity, ErrAlreadyExists,
		ErrOrderCancelled, ErrDeliveryFrozen, ErrAlreadyCancelled,
		ErrCompletedDelivery, ErrInvalidTransition, ErrConflict,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("repository unavailable: %w", err)
		}
	}

	return err
}
