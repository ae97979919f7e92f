package dag

import "fmt"

// Reason classifies why a transaction failed validation.
type Reason int

const (
	// MissingParent means a direct parent is not in the graph.
	MissingParent Reason = iota
	// AncestorInvalid means some ancestor is revoked, missing, or badly signed.
	AncestorInvalid
	// BadSignature means the transaction's own signature does not verify.
	BadSignature
	// CyclicAncestry means the ancestry loops back on itself.
	CyclicAncestry
)

// String implements fmt.Stringer.
func (r Reason) String() string {
	switch r {
	case MissingParent:
		return "missing parent"
	case AncestorInvalid:
		return "invalid ancestor"
	case BadSignature:
		return "bad signature"
	case CyclicAncestry:
		return "cyclic ancestry"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// ValidationError is returned when a transaction cannot be admitted to the
// graph. Cause is the id of the transaction at which the problem was found:
// the missing parent, the revoked or badly signed ancestor, or the id that was
// revisited.
type ValidationError struct {
	TxID   string
	Reason Reason
	Cause  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause == "" || e.Cause == e.TxID {
		return fmt.Sprintf("transaction %s failed validation: %s", e.TxID, e.Reason)
	}
	return fmt.Sprintf("transaction %s failed validation: %s (%s)", e.TxID, e.Reason, e.Cause)
}

// IsValidation checks that an error is a ValidationError with the given
// reason.
func IsValidation(err error, reason Reason) bool {
	verr, ok := err.(*ValidationError)
	return ok && verr.Reason == reason
}
