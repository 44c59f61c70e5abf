// Package service implements the bill-splitting use cases on top of a
// storage.Store and the messaging and receipt collaborators.
package service

import (
	"errors"
	"fmt"

	"github.com/MJ-02/BillSplitter/internal/calculator"
	"github.com/MJ-02/BillSplitter/internal/storage"
)

// Validation errors. Callers match them with errors.Is.
var (
	ErrNoValidAssignments = calculator.ErrNoValidAssignments
	ErrOrderNotFound      = errors.New("order not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrSplitNotFound      = errors.New("split not found")
	ErrPayerNotFound      = errors.New("payer not found")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// notFound replaces storage.ErrNotFound with the domain sentinel and passes
// every other error through.
func notFound(err error, sentinel error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return err
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
