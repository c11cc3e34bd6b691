package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist. It
// aliases gorm.ErrRecordNotFound for convenience and consistency across
// the domain-package layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate names a unique-constraint violation (e.g. the
// topic-uniqueness invariant, §3 invariant 1). No function in this package
// returns it; driver errors of that kind are recognized with isDuplicate.
var ErrDuplicate = errors.New("repo: duplicate key")

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
