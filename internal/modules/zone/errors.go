package zone

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("zone not found")
	ErrValidation = errors.New("validation error")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
