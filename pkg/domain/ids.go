package domain

import (
	"github.com/google/uuid"

	dErrors "canlaw/pkg/domain-errors"
)

// CaseID uniquely identifies one interview case. The underlying UUID is
// hidden behind a distinct type so case IDs cannot be confused with other
// identifiers at compile time.
type CaseID uuid.UUID

// NewCaseID returns a fresh random case ID.
func NewCaseID() CaseID {
	return CaseID(uuid.New())
}

// ParseCaseID validates an external case ID string at a trust boundary.
// Empty, malformed, and nil UUIDs are rejected.
func ParseCaseID(s string) (CaseID, error) {
	if s == "" {
		return CaseID{}, dErrors.New(dErrors.CodeInvalidInput, "case id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return CaseID{}, dErrors.New(dErrors.CodeInvalidInput, "case id must be a valid UUID")
	}
	if u == uuid.Nil {
		return CaseID{}, dErrors.New(dErrors.CodeInvalidInput, "case id must not be the nil UUID")
	}
	return CaseID(u), nil
}

func (c CaseID) String() string {
	return uuid.UUID(c).String()
}

// MarshalText renders the canonical UUID string so case IDs JSON-encode as
// strings rather than byte arrays.
func (c CaseID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CaseID) UnmarshalText(text []byte) error {
	parsed, err := ParseCaseID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsNil reports whether the ID is the zero value.
func (c CaseID) IsNil() bool {
	return uuid.UUID(c) == uuid.Nil
}
