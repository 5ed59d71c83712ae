package ledger

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies the rule a transaction or block violated.
type ErrorCode int

// Structural rejections concern where a block attaches to the tree.
const (
	ErrNoParentRef ErrorCode = iota
	ErrMissingParent
	ErrFinality
	ErrDuplicateBlock
)

// Validation rejections concern the content of transactions.
const (
	ErrMissingInput ErrorCode = iota + 100
	ErrDoubleSpend
	ErrBadSignature
	ErrNegativeOutput
	ErrInsufficientInput
	ErrBlockTxs
	ErrBadCoinbase
)

var errorCodeStrings = map[ErrorCode]string{
	ErrNoParentRef:       "ErrNoParentRef",
	ErrMissingParent:     "ErrMissingParent",
	ErrFinality:          "ErrFinality",
	ErrDuplicateBlock:    "ErrDuplicateBlock",
	ErrMissingInput:      "ErrMissingInput",
	ErrDoubleSpend:       "ErrDoubleSpend",
	ErrBadSignature:      "ErrBadSignature",
	ErrNegativeOutput:    "ErrNegativeOutput",
	ErrInsufficientInput: "ErrInsufficientInput",
	ErrBlockTxs:          "ErrBlockTxs",
	ErrBadCoinbase:       "ErrBadCoinbase",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError is an expected negative outcome of validation, never a defect.
type RuleError struct {
	ErrorCode   ErrorCode
	Description string
}

func (e RuleError) Error() string {
	return e.Description
}

// Structural reports whether the error concerns the block's position in
// the tree rather than its content.
func (e RuleError) Structural() bool {
	return e.ErrorCode < ErrMissingInput
}


// IsRuleError reports whether err carries a RuleError, returning it.
func IsRuleError(err error) (RuleError, bool) {
	var ruleErr RuleError
	ok := errors.As(err, &ruleErr)
	return ruleErr, ok
}

// NewRuleError builds a RuleError with a formatted description.
func NewRuleError(c ErrorCode, format string, args ...interface{}) RuleError {
	return RuleError{ErrorCode: c, Description: fmt.Sprintf(format, args...)}
}
