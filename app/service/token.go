package service

import (
	"fmt"
	"strconv"
	"strings"
)

const correlationPrefix = "pay"

// CorrelationToken is carried in the Telegram invoice payload and echoed
// back by pre-checkout and successful-payment updates.
type CorrelationToken struct {
	PaymentID uint64
	UserID    int64
	CourseID  uint64
}

func (t CorrelationToken) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", correlationPrefix, t.PaymentID, t.UserID, t.CourseID)
}

func ParseCorrelationToken(raw string) (*CorrelationToken, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 4 || parts[0] != correlationPrefix {
		return nil, fmt.Errorf("%w: malformed correlation token", ErrValidation)
	}

	paymentID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || paymentID == 0 {
		return nil, fmt.Errorf("%w: invalid payment id in token", ErrValidation)
	}
	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id in token", ErrValidation)
	}
	courseID, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil || courseID == 0 {
		return nil, fmt.Errorf("%w: invalid course id in token", ErrValidation)
	}

	return &CorrelationToken{PaymentID: paymentID, UserID: userID, CourseID: courseID}, nil
}
