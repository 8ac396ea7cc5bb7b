package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique index rejected the write.
var ErrDuplicate = errors.New("duplicate")

// ErrInvalidTransition is returned when a gate record move is not allowed by
// the state machine, or the record changed state underneath the caller.
var ErrInvalidTransition = errors.New("invalid state transition")

// isUniqueViolation matches the driver's UNIQUE error text; glebarez/sqlite
// often returns plain-text errors instead of gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
