// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// AccountID represents the identity of a caller principal as resolved by the
// hosting layer. The core treats it as opaque: two principals are the same
// account if and only if the strings are equal.
type AccountID string

// IsValid checks that the account ID is non-empty.
func (a AccountID) IsValid() bool {
	return strings.TrimSpace(string(a)) != ""
}

// String returns the string representation.
func (a AccountID) String() string {
	return string(a)
}

// Equal reports whether two account IDs name the same principal.
func (a AccountID) Equal(other AccountID) bool {
	return a == other
}

// NewAccountID creates a new AccountID with validation.
func NewAccountID(s string) (AccountID, error) {
	id := AccountID(strings.TrimSpace(s))
	if !id.IsValid() {
		return "", NewDomainError("shared", "NewAccountID", ErrInvalidID, "account ID must not be empty")
	}
	return id, nil
}

// CourseID represents a unique course identifier (UUID format).
type CourseID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the course ID is a valid UUID.
func (c CourseID) IsValid() bool {
	return uuidRegex.MatchString(string(c))
}

// String returns the string representation.
func (c CourseID) String() string {
	return string(c)
}

// IsEmpty checks if the ID is empty.
func (c CourseID) IsEmpty() bool {
	return c == ""
}

// NewCourseID creates a new CourseID with validation.
func NewCourseID(id string) (CourseID, error) {
	cid := CourseID(strings.ToLower(strings.TrimSpace(id)))
	if !cid.IsValid() {
		return "", NewDomainError("shared", "NewCourseID", ErrInvalidID, "invalid course ID format")
	}
	return cid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object (fixed point, 2 implied decimals)
// ═══════════════════════════════════════════════════════════════════════════

// Score is a fixed-point grade value with two implied decimal digits:
// the stored integer is the grade multiplied by 100, so 800 means 8.00.
type Score int

const (
	// MinScore is the lowest storable grade (0.00).
	MinScore Score = 0
	// MaxScore is the highest storable grade (10.00).
	MaxScore Score = 1000
	// PassingCap is the ceiling applied to a final grade when the student
	// skipped at least one evaluation (4.99, just below passing).
	PassingCap Score = 499
)

// ScoreScale converts whole grade units into the stored fixed-point value.
const ScoreScale = 100

// NewScoreFromUnits scales a whole-unit grade (0..10) into a Score.
func NewScoreFromUnits(units int) (Score, error) {
	s := Score(units * ScoreScale)
	if !s.IsValid() {
		return 0, NewDomainError("shared", "NewScoreFromUnits", ErrScoreOutOfRange,
			fmt.Sprintf("grade %d is outside 0..10", units))
	}
	return s, nil
}

// IsValid checks that the score is within the storable range.
func (s Score) IsValid() bool {
	return s >= MinScore && s <= MaxScore
}

// Int returns the raw fixed-point value.
func (s Score) Int() int {
	return int(s)
}

// Units returns the whole part of the grade (800 -> 8).
func (s Score) Units() int {
	return int(s) / ScoreScale
}

// String formats the score with its two decimal digits (800 -> "8.00").
func (s Score) String() string {
	return fmt.Sprintf("%d.%02d", int(s)/ScoreScale, int(s)%ScoreScale)
}

// ═══════════════════════════════════════════════════════════════════════════
// Weight Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Weight is an evaluation's weight in plain integer percentage points.
// Weights across a course are NOT required to sum to 100; the aggregator
// normalizes by the total weight of graded evaluations.
type Weight int

// IsValid checks that the weight is non-negative.
func (w Weight) IsValid() bool {
	return w >= 0
}

// Int returns the underlying int value.
func (w Weight) Int() int {
	return int(w)
}

// ═══════════════════════════════════════════════════════════════════════════
// Term Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Term represents an academic term label (for example, "2025-2026 Q1").
type Term string

// IsValid checks that the term label is non-empty and of sane length.
func (t Term) IsValid() bool {
	s := strings.TrimSpace(string(t))
	return s != "" && len(s) <= 60
}

// String returns the string representation.
func (t Term) String() string {
	return string(t)
}
