package repo

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey), true},
		{errors.New("UNIQUE constraint failed: gate_records.token"), true},
		{errors.New("constraint failed: UNIQUE constraint failed (2067)"), true},
		{errors.New("CHECK constraint failed: state"), false},
		{errors.New("disk I/O error"), false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Errorf("isUniqueViolation(%v) = %v; want %v", tc.err, got, tc.want)
		}
	}
}

func TestErrNotFoundAliasesGorm(t *testing.T) {
	if !errors.Is(ErrNotFound, gorm.ErrRecordNotFound) {
		t.Fatalf("ErrNotFound must alias gorm.ErrRecordNotFound")
	}
}
