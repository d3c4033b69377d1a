package postprocess

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidInputLength is returned when a score vector does not have one
// entry per configured label.
var ErrInvalidInputLength = errors.New("invalid input length")

// InputLengthError carries the expected and actual lengths of a rejected vector.
//
// errors.Is(err, ErrInvalidInputLength) holds for every InputLengthError.
type InputLengthError struct {
	Expected int
	Actual   int
}

func (e *InputLengthError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrInvalidInputLength, e.Expected, e.Actual)
}

func (e *InputLengthError) Unwrap() error { return ErrInvalidInputLength }
