// Package errors defines the error vocabulary of the component runtime:
// sentinel errors for the recoverable failure classes, a ComponentError that
// carries kind/instance context, and a thread-safe collector the registry
// uses to record initialization failures without propagating them.
package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownKind is returned when no factory is registered for a kind.
	ErrUnknownKind = errors.New("unknown component kind")
	// ErrMissingRoot marks a component whose DOM root could not be resolved.
	ErrMissingRoot = errors.New("component root not found")
	// ErrNotRegistered is returned when a module loaded but did not register its kind.
	ErrNotRegistered = errors.New("module did not register component")
	// ErrDestroyed is returned for operations on a destroyed component.
	ErrDestroyed = errors.New("component destroyed")
	// ErrPanic wraps a recovered panic from a hook or handler.
	ErrPanic = errors.New("recovered panic")
)

// ComponentError records a failure of one lifecycle operation on one instance.
type ComponentError struct {
	Kind      string
	ID        string
	Op        string
	Err       error
	Timestamp time.Time
}

// NewComponentError builds a ComponentError stamped with the current time.
func NewComponentError(kind, id, op string, err error) *ComponentError {
	return &ComponentError{
		Kind:      kind,
		ID:        id,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (ce *ComponentError) Error() string {
	if ce.ID != "" {
		return fmt.Sprintf("%s %s (%s): %v", ce.Op, ce.Kind, ce.ID, ce.Err)
	}
	return fmt.Sprintf("%s %s: %v", ce.Op, ce.Kind, ce.Err)
}

// Unwrap returns the underlying cause.
func (ce *ComponentError) Unwrap() error {
	return ce.Err
}

// FromPanic converts a recovered value into an error wrapping ErrPanic.
func FromPanic(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}

// ErrorCollector collects component errors.
type ErrorCollector struct {
	errors []*ComponentError
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]*ComponentError, 0),
	}
}

// Add records err. Nil errors are ignored.
func (ec *ErrorCollector) Add(err *ComponentError) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// GetErrors returns a copy of all collected errors in insertion order.
func (ec *ErrorCollector) GetErrors() []*ComponentError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]*ComponentError, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors) > 0
}

// Count returns the number of collected errors.
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors)
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = ec.errors[:0]
}

// GetErrorsByKind returns errors for a specific component kind
func (ec *ErrorCollector) GetErrorsByKind(kind string) []*ComponentError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var kindErrors []*ComponentError
	for _, err := range ec.errors {
		if err.Kind == kind {
			kindErrors = append(kindErrors, err)
		}
	}
	return kindErrors
}

// GetErrorsByID returns errors recorded for one instance.
func (ec *ErrorCollector) GetErrorsByID(id string) []*ComponentError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var idErrors []*ComponentError
	for _, err := range ec.errors {
		if err.ID == id {
			idErrors = append(idErrors, err)
		}
	}
	return idErrors
}

// Join returns every collected error combined with errors.Join, or nil.
func (ec *ErrorCollector) Join() error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	if len(ec.errors) == 0 {
		return nil
	}
	errs := make([]error, len(ec.errors))
	for i, err := range ec.errors {
		errs[i] = err
	}
	return errors.Join(errs...)
}
