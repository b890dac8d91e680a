package cells

import "errors"

var (
	// ErrFrozenMutation reports any mutation attempted on a Static cell.
	ErrFrozenMutation = errors.New("cell is static and rejects mutation")

	// ErrInvalidExpression reports a nil expression assignment.
	ErrInvalidExpression = errors.New("expression must be non-nil")

	// ErrProtocolViolation reports an immune execution requested outside
	// the cell's own active evaluation.
	ErrProtocolViolation = errors.New("immune execution outside own evaluation")

	// ErrInheritAssignment reports an attempt to set the Inherit type
	// directly. Inherit is computed, never assigned.
	ErrInheritAssignment = errors.New("inherit type is computed, not assigned")
)
