package domain

import (
	"fmt"
	"time"
)

// VerificationType is the closed set of actions a verification code can
// authorize. Adding a value here requires a matching case in the verify
// dispatcher; the default case there treats anything else as a defect.
type VerificationType string

const (
	VerificationOnboarding    VerificationType = "onboarding"
	VerificationResetPassword VerificationType = "reset-password"
	VerificationChangeEmail   VerificationType = "change-email"
)

// ParseVerificationType validates a wire string against the closed enum.
func ParseVerificationType(s string) (VerificationType, error) {
	switch vt := VerificationType(s); vt {
	case VerificationOnboarding, VerificationResetPassword, VerificationChangeEmail:
		return vt, nil
	}
	return "", fmt.Errorf("unknown verification type %q: %w", s, ErrBadRequest)
}

// CodeLength is the fixed length of every verification code.
const CodeLength = 6

// VerificationRecord is a short-lived single-use code bound to a (type, target)
// pair. PK: target, SK: type. At most one live record exists per pair — issuing
// again overwrites in place. ExpiresAt doubles as the DynamoDB TTL attribute.
type VerificationRecord struct {
	Target    string           `json:"target" dynamodbav:"target"`
	Type      VerificationType `json:"type" dynamodbav:"type"`
	Code      string           `json:"-" dynamodbav:"code"`
	ExpiresAt int64            `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	CreatedAt time.Time        `json:"created" dynamodbav:"created_at"`
}

// Expired reports whether the record is dead at the given instant.
// The boundary is inclusive: a code presented at exactly ExpiresAt is expired.
func (v *VerificationRecord) Expired(now time.Time) bool {
	return !now.Before(time.Unix(v.ExpiresAt, 0))
}
