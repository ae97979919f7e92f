package consensus

import (
	"errors"
	"fmt"
)

// RejectedError is returned by Propose when the proposal did not gather a
// strict majority of accepting votes.
type RejectedError struct {
	Votes    int
	Required int
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("consensus rejected: %d votes, %d required", e.Votes, e.Required)
}

// IsRejected reports whether err is a RejectedError.
func IsRejected(err error) bool {
	var rerr *RejectedError
	return errors.As(err, &rerr)
}

var (
	// ErrRateLimited is returned to a leader that sends requests faster than
	// the validator accepts them.
	ErrRateLimited = errors.New("rate limited")
	// ErrBadRequestSignature is returned when a request is not signed by the
	// key it claims to come from.
	ErrBadRequestSignature = errors.New("bad request signature")
	// ErrUnknownLeader is returned when a request comes from a key that is not
	// an authorized leader.
	ErrUnknownLeader = errors.New("unknown leader")
)
