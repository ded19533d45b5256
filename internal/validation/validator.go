package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
)

const (
	// Size limits
	MaxColumnNameSize = 256
	MaxLimit          = 100000
	MaxOrderSpecs     = 16
)

// Validator validates query descriptors before they are executed
type Validator struct {
	maxColumnNameSize int
	maxLimit          int
}

// NewValidator creates a new validator with default limits
func NewValidator() *Validator {
	return &Validator{
		maxColumnNameSize: MaxColumnNameSize,
		maxLimit:          MaxLimit,
	}
}

// NewValidatorWithLimits creates a validator with custom limits
func NewValidatorWithLimits(maxColumnNameSize, maxLimit int) *Validator {
	return &Validator{
		maxColumnNameSize: maxColumnNameSize,
		maxLimit:          maxLimit,
	}
}

// ValidateColumns validates every declared column name
func (v *Validator) ValidateColumns(columns []string) error {
	for _, c := range columns {
		if err := v.ValidateColumn(c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateColumn validates a column name or dotted path
func (v *Validator) ValidateColumn(column string) error {
	if column == "" {
		return errors.InvalidFilter(column, "column name cannot be empty")
	}

	if len(column) > v.maxColumnNameSize {
		return errors.InvalidFilter(column, fmt.Sprintf("column name exceeds maximum size of %d", v.maxColumnNameSize))
	}

	// Paths are joined with dots; empty segments never resolve
	if strings.HasPrefix(column, ".") || strings.HasSuffix(column, ".") || strings.Contains(column, "..") {
		return errors.InvalidFilter(column, "column path has an empty segment")
	}

	for _, r := range column {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errors.InvalidFilter(column, "column name cannot contain whitespace or control characters")
		}
	}

	return nil
}

// ValidatePagination validates a limit/offset pair. A limit of 0 means unbounded.
func (v *Validator) ValidatePagination(limit, offset int) error {
	if limit < 0 {
		return errors.InvalidPagination(fmt.Sprintf("negative limit %d", limit))
	}
	if offset < 0 {
		return errors.InvalidPagination(fmt.Sprintf("negative offset %d", offset))
	}
	if v.maxLimit > 0 && limit > v.maxLimit {
		return errors.InvalidPagination(fmt.Sprintf("limit %d exceeds maximum %d", limit, v.maxLimit))
	}
	return nil
}

// ValidateOrderCount limits the number of order specs of a query
func (v *Validator) ValidateOrderCount(n int) error {
	if n > MaxOrderSpecs {
		return errors.InvalidFilter("", fmt.Sprintf("too many order columns: %d > %d", n, MaxOrderSpecs))
	}
	return nil
}

// SanitizeColumn trims whitespace and removes control characters
func SanitizeColumn(column string) string {
	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, column)
	return strings.TrimSpace(sanitized)
}
