package csvparse

import (
	"errors"
	"fmt"
)

// RowMismatchPolicy decides what happens to a line whose field count differs
// from the header
type RowMismatchPolicy string

// UnparsablePolicy decides what happens to a numeric column that does not
// hold a number
type UnparsablePolicy string

// Policy constants
const (
	RowMismatchDrop RowMismatchPolicy = "drop"
	RowMismatchFail RowMismatchPolicy = "fail"

	UnparsableKeepAsString UnparsablePolicy = "keep"
	UnparsableFail         UnparsablePolicy = "fail"
)

var (
	// ErrRowMismatch is returned under RowMismatchFail
	ErrRowMismatch = errors.New("field count does not match header")
	// ErrUnparsableNumber is returned under UnparsableFail
	ErrUnparsableNumber = errors.New("value is not a number")
)

// Policy groups the error policies of the parser and decoder
type Policy struct {
	OnRowMismatch      RowMismatchPolicy
	OnUnparsableNumber UnparsablePolicy
}

// DefaultPolicy favours availability: malformed lines are dropped and
// unparsable numbers are kept as strings.
func DefaultPolicy() Policy {
	return Policy{
		OnRowMismatch:      RowMismatchDrop,
		OnUnparsableNumber: UnparsableKeepAsString,
	}
}

// ParsePolicy builds a Policy from its textual form, as found in configuration
func ParsePolicy(rowMismatch, unparsable string) (Policy, error) {
	p := DefaultPolicy()

	switch RowMismatchPolicy(rowMismatch) {
	case "", RowMismatchDrop:
	case RowMismatchFail:
		p.OnRowMismatch = RowMismatchFail
	default:
		return p, fmt.Errorf("invalid row mismatch policy: %s", rowMismatch)
	}

	switch UnparsablePolicy(unparsable) {
	case "", UnparsableKeepAsString:
	case UnparsableFail:
		p.OnUnparsableNumber = UnparsableFail
	default:
		return p, fmt.Errorf("invalid unparsable number policy: %s", unparsable)
	}

	return p, nil
}
